package notion

import (
	"context"
	"strings"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
)

// QueryAll fetches every page of a database, following cursors.
func QueryAll(ctx context.Context, c Client, dbID string, filter *notionapi.DatabaseQueryRequest) ([]notionapi.Page, error) {
	var all []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{StartCursor: cursor}
		if filter != nil {
			req.Filter = filter.Filter
			req.Sorts = filter.Sorts
			req.PageSize = filter.PageSize
		}

		resp, err := c.QueryDatabase(ctx, dbID, req)
		if err != nil {
			return nil, eris.Wrap(err, "notion: query all page")
		}
		all = append(all, resp.Results...)

		if !resp.HasMore || resp.NextCursor == "" {
			return all, nil
		}
		cursor = resp.NextCursor
	}
}

// PageTitle returns the plain text of the named title property, or of the
// page's title property when name is empty.
func PageTitle(page notionapi.Page, name string) string {
	for key, prop := range page.Properties {
		if name != "" && key != name {
			continue
		}
		var title []notionapi.RichText
		switch p := prop.(type) {
		case *notionapi.TitleProperty:
			title = p.Title
		case notionapi.TitleProperty:
			title = p.Title
		case *notionapi.RichTextProperty:
			if name == "" {
				continue
			}
			title = p.RichText
		case notionapi.RichTextProperty:
			if name == "" {
				continue
			}
			title = p.RichText
		default:
			continue
		}
		return richTextString(title)
	}
	return ""
}

func richTextString(parts []notionapi.RichText) string {
	var b strings.Builder
	for _, rt := range parts {
		switch {
		case rt.PlainText != "":
			b.WriteString(rt.PlainText)
		case rt.Text != nil:
			b.WriteString(rt.Text.Content)
		}
	}
	return strings.TrimSpace(b.String())
}
