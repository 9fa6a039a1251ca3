package intake

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/portverify/pkg/notion"
)

// NotionSource reads location names from the title property of a Notion
// database.
type NotionSource struct {
	client   notion.Client
	property string
}

// NewNotionSource creates a NotionSource. An empty property selects each
// page's title property.
func NewNotionSource(client notion.Client, property string) *NotionSource {
	return &NotionSource{client: client, property: property}
}

// QueryNames returns the non-empty titles of every page, in query order.
func (s *NotionSource) QueryNames(ctx context.Context, dbID string) ([]string, error) {
	pages, err := notion.QueryAll(ctx, s.client, dbID, nil)
	if err != nil {
		return nil, eris.Wrap(err, "intake: notion query")
	}

	names := make([]string, 0, len(pages))
	for _, page := range pages {
		if title := notion.PageTitle(page, s.property); title != "" {
			names = append(names, title)
		}
	}

	zap.L().Info("intake: notion names loaded",
		zap.String("database", dbID),
		zap.Int("pages", len(pages)),
		zap.Int("names", len(names)),
	)
	return names, nil
}
