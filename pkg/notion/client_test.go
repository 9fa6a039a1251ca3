package notion

import (
	"context"
	"testing"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockClient implements Client for testing.
type MockClient struct {
	mock.Mock
}

func (m *MockClient) QueryDatabase(ctx context.Context, dbID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	args := m.Called(ctx, dbID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*notionapi.DatabaseQueryResponse), args.Error(1)
}

func TestMockClientSatisfiesInterface(t *testing.T) {
	var _ Client = (*MockClient)(nil)
}

func TestNewClient_RateLimitOptions(t *testing.T) {
	c := NewClient("secret").(*notionClient)
	assert.NotNil(t, c.limiter)
	assert.InDelta(t, 3.0, float64(c.limiter.Limit()), 0.001)

	c = NewClient("secret", WithRateLimit(10)).(*notionClient)
	assert.InDelta(t, 10.0, float64(c.limiter.Limit()), 0.001)
	assert.Equal(t, 10, c.limiter.Burst())

	c = NewClient("secret", WithRateLimit(0)).(*notionClient)
	assert.Nil(t, c.limiter)
}
