// Package notionsync mirrors detected bills into a Notion database, one
// page per merchant.
package notionsync

import (
	"context"
	"fmt"

	"github.com/dvloznov/bill-tracker/internal/domain"
	"github.com/dvloznov/bill-tracker/internal/logger"
	"github.com/jomei/notionapi"
)

// PageSize is the number of pages requested per database query.
const PageSize = 100

// SyncResult counts what a sync did, or would do in a dry run.
type SyncResult struct {
	Created  int
	Updated  int
	Archived int
	Failed   int
}

// SyncBills makes the database match bills. Pages are matched on the
// Merchant title: matches are updated, missing merchants are created, and
// pages for merchants no longer billed (or duplicates) are archived.
// Individual page failures are logged and counted, not returned.
func SyncBills(ctx context.Context, notionClient NotionService, notionDBID string, bills []domain.Bill, dryRun bool) (SyncResult, error) {
	log := logger.FromContext(ctx)
	var res SyncResult

	log.Info().
		Int("bills", len(bills)).
		Bool("dry_run", dryRun).
		Msg("Starting bill sync to Notion")

	pages, err := queryAllNotionPages(ctx, notionClient, notionDBID)
	if err != nil {
		return res, fmt.Errorf("SyncBills: %w", err)
	}
	log.Info().Int("notion_page_count", len(pages)).Msg("Retrieved existing Notion pages")

	wanted := make(map[string]bool, len(bills))
	for _, b := range bills {
		wanted[b.Merchant] = true
	}

	// first page per merchant wins; the rest are stale
	existing := make(map[string]string, len(pages))
	var stale []notionapi.Page
	for _, page := range pages {
		merchant := extractMerchant(page)
		if merchant == "" || !wanted[merchant] {
			stale = append(stale, page)
			continue
		}
		if _, dup := existing[merchant]; dup {
			stale = append(stale, page)
			continue
		}
		existing[merchant] = string(page.ID)
	}

	for _, page := range stale {
		merchant := extractMerchant(page)
		if dryRun {
			log.Info().Str("merchant", merchant).Str("page_id", string(page.ID)).Msg("[DRY RUN] Would archive stale Notion page")
			res.Archived++
			continue
		}
		if err := notionClient.ArchivePage(ctx, string(page.ID)); err != nil {
			log.Warn().Err(err).Str("merchant", merchant).Str("page_id", string(page.ID)).Msg("Failed to archive stale Notion page")
			res.Failed++
			continue
		}
		res.Archived++
	}

	for _, b := range bills {
		pageID, ok := existing[b.Merchant]
		if dryRun {
			if ok {
				log.Info().Str("merchant", b.Merchant).Str("page_id", pageID).Msg("[DRY RUN] Would update Notion page")
				res.Updated++
			} else {
				log.Info().Str("merchant", b.Merchant).Msg("[DRY RUN] Would create Notion page")
				res.Created++
			}
			continue
		}

		props := BillToNotionProperties(b)
		if ok {
			if _, err := notionClient.UpdatePage(ctx, pageID, props); err != nil {
				log.Warn().Err(err).Str("merchant", b.Merchant).Str("page_id", pageID).Msg("Failed to update Notion page")
				res.Failed++
				continue
			}
			res.Updated++
			continue
		}

		page, err := notionClient.CreatePage(ctx, notionDBID, props)
		if err != nil {
			log.Warn().Err(err).Str("merchant", b.Merchant).Msg("Failed to create Notion page")
			res.Failed++
			continue
		}
		// a repeated merchant in bills updates the page just created
		existing[b.Merchant] = string(page.ID)
		res.Created++
	}

	log.Info().
		Int("created", res.Created).
		Int("updated", res.Updated).
		Int("archived", res.Archived).
		Int("failed", res.Failed).
		Msg("Bill sync to Notion completed")

	return res, nil
}

func queryAllNotionPages(ctx context.Context, notionClient NotionService, databaseID string) ([]notionapi.Page, error) {
	var allPages []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{PageSize: PageSize}
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := notionClient.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("queryAllNotionPages: %w", err)
		}
		allPages = append(allPages, resp.Results...)

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}

	return allPages, nil
}
