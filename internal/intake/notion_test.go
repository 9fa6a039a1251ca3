package intake

import (
	"context"
	"errors"
	"testing"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockNotion struct {
	mock.Mock
}

func (m *mockNotion) QueryDatabase(ctx context.Context, dbID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	args := m.Called(ctx, dbID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*notionapi.DatabaseQueryResponse), args.Error(1)
}

func namedPage(id, title string) notionapi.Page {
	return notionapi.Page{
		ID: notionapi.ObjectID(id),
		Properties: notionapi.Properties{
			"Name": &notionapi.TitleProperty{Title: []notionapi.RichText{{PlainText: title}}},
		},
	}
}

func TestNotionSource_QueryNames(t *testing.T) {
	mc := new(mockNotion)
	ctx := context.Background()

	mc.On("QueryDatabase", ctx, "db-ports", mock.Anything).Return(&notionapi.DatabaseQueryResponse{
		Results:    []notionapi.Page{namedPage("1", "Shekou"), namedPage("2", "  ")},
		HasMore:    true,
		NextCursor: "next",
	}, nil).Once()
	mc.On("QueryDatabase", ctx, "db-ports", mock.Anything).Return(&notionapi.DatabaseQueryResponse{
		Results: []notionapi.Page{namedPage("3", "Shekou"), namedPage("4", "USLAX")},
	}, nil).Once()

	names, err := NewNotionSource(mc, "").QueryNames(ctx, "db-ports")
	require.NoError(t, err)
	assert.Equal(t, []string{"Shekou", "Shekou", "USLAX"}, names)
	mc.AssertExpectations(t)
}

func TestNotionSource_QueryNamesError(t *testing.T) {
	mc := new(mockNotion)
	ctx := context.Background()
	mc.On("QueryDatabase", ctx, "db-ports", mock.Anything).Return(nil, errors.New("forbidden"))

	_, err := NewNotionSource(mc, "Name").QueryNames(ctx, "db-ports")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "intake: notion query")
}
