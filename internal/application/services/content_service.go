package services

import (
	"context"

	"github.com/stockapp/stockapp-go/internal/domain/entities/content"
	"github.com/stockapp/stockapp-go/internal/domain/entities/session"
	"github.com/stockapp/stockapp-go/internal/infrastructure/cms"
	"github.com/stockapp/stockapp-go/internal/infrastructure/observability/logging"
	"github.com/stockapp/stockapp-go/internal/infrastructure/resilience"
)

// ContentService resolves CMS content, layering personalized variants
// on top of the plain fetch. Anonymous visitors and users without a
// live edge session short-circuit to the unpersonalized entry, and a
// failed personalized fetch falls back to the plain one rather than
// erroring.
type ContentService struct {
	cms             *cms.Client
	personalization *PersonalizationService
	logger          *logging.ChanneledLogger
}

// NewContentService creates a content service with its dependencies.
func NewContentService(client *cms.Client, personalization *PersonalizationService, logger *logging.ChanneledLogger) *ContentService {
	return &ContentService{
		cms:             client,
		personalization: personalization,
		logger:          logger,
	}
}

// aliasesFor initializes the visitor's edge session and returns the
// variant aliases to fetch with, or nil when the visitor gets the
// default experience. Init runs on every personalized request so a
// restarted instance or an evicted session recovers transparently; the
// session store short-circuits identical shapes, so the steady-state
// cost is a map lookup.
func (s *ContentService) aliasesFor(ctx context.Context, identity session.VisitorIdentity, req SegmentRequest) []string {
	if identity.IsAnonymous() {
		return nil
	}
	s.personalization.InitForUser(ctx, identity, req)
	aliases := s.personalization.GetVariantAliases(identity.UserID)
	if len(aliases) == 0 {
		return nil
	}
	return aliases
}

// GetEntry fetches a single entry, personalized when the visitor has
// active variants.
func (s *ContentService) GetEntry(ctx context.Context, identity session.VisitorIdentity, req SegmentRequest, contentType, uid string, params map[string]any) (content.Entry, error) {
	aliases := s.aliasesFor(ctx, identity, req)
	if len(aliases) == 0 {
		return s.cms.GetEntry(ctx, contentType, uid, params, nil)
	}

	entry, err := s.cms.GetEntry(ctx, contentType, uid, params, aliases)
	if err != nil {
		s.logger.Content().Warn("Personalized entry fetch failed, falling back to default",
			"contentType", contentType, "uid", uid, "error", err.Error())
		return s.cms.GetEntry(ctx, contentType, uid, params, nil)
	}
	return entry, nil
}

// GetEntries fetches an entry list, personalized when possible.
func (s *ContentService) GetEntries(ctx context.Context, identity session.VisitorIdentity, req SegmentRequest, contentType string, params map[string]any) ([]content.Entry, error) {
	aliases := s.aliasesFor(ctx, identity, req)
	if len(aliases) == 0 {
		return s.cms.GetEntries(ctx, contentType, params, nil)
	}

	entries, err := s.cms.GetEntries(ctx, contentType, params, aliases)
	if err != nil {
		s.logger.Content().Warn("Personalized list fetch failed, falling back to default",
			"contentType", contentType, "error", err.Error())
		return s.cms.GetEntries(ctx, contentType, params, nil)
	}
	return entries, nil
}

// GetPage fetches a page by URL with its hero and featured stock
// references resolved, personalized when possible.
func (s *ContentService) GetPage(ctx context.Context, identity session.VisitorIdentity, req SegmentRequest, pageURL string) (content.Entry, error) {
	aliases := s.aliasesFor(ctx, identity, req)
	if len(aliases) == 0 {
		return s.cms.GetPage(ctx, pageURL, nil)
	}

	page, err := s.cms.GetPage(ctx, pageURL, aliases)
	if err != nil {
		s.logger.Content().Warn("Personalized page fetch failed, falling back to default",
			"url", pageURL, "error", err.Error())
		return s.cms.GetPage(ctx, pageURL, nil)
	}
	return page, nil
}

// GetStock fetches a stock by symbol. The plain lookup resolves the
// entry uid, then visitors with active variants get the entry
// re-fetched with their aliases. A failed variant fetch falls back to
// the plain result.
func (s *ContentService) GetStock(ctx context.Context, identity session.VisitorIdentity, req SegmentRequest, symbol string) (content.Entry, error) {
	stock, err := s.cms.GetStock(ctx, symbol)
	if err != nil || stock == nil {
		return stock, err
	}

	aliases := s.aliasesFor(ctx, identity, req)
	if len(aliases) == 0 {
		return stock, nil
	}

	personalized, err := s.cms.GetEntry(ctx, content.TypeStock, stock.UID(), nil, aliases)
	if err != nil || personalized == nil {
		if err != nil {
			s.logger.Content().Warn("Personalized stock fetch failed, falling back to default",
				"symbol", symbol, "error", err.Error())
		}
		return stock, nil
	}
	return personalized, nil
}

// GetAllStocks fetches the stock list with sector names resolved.
func (s *ContentService) GetAllStocks(ctx context.Context, opts cms.StockListOptions) (*content.StockList, error) {
	return s.cms.GetAllStocks(ctx, opts)
}

// GetStocksBySymbols batch-fetches stocks for a symbol list.
func (s *ContentService) GetStocksBySymbols(ctx context.Context, symbols []string) ([]content.Entry, error) {
	return s.cms.GetStocksBySymbols(ctx, symbols)
}

// GetAllSectors fetches every sector entry.
func (s *ContentService) GetAllSectors(ctx context.Context) ([]content.Entry, error) {
	return s.cms.GetAllSectors(ctx)
}

// GetSector fetches one sector by uid.
func (s *ContentService) GetSector(ctx context.Context, uid string) (content.Entry, error) {
	return s.cms.GetSector(ctx, uid)
}

// GetNavbar returns the navbar entry, degrading to nil when the CMS is
// unavailable so chrome rendering never blocks a page.
func (s *ContentService) GetNavbar(ctx context.Context) content.Entry {
	return resilience.Degrade[content.Entry](s.logger.Content(), "navbar fetch", nil, func() (content.Entry, error) {
		return s.cms.GetNavbar(ctx)
	})
}

// GetFooter returns the footer entry, degrading to nil when the CMS is
// unavailable.
func (s *ContentService) GetFooter(ctx context.Context) content.Entry {
	return resilience.Degrade[content.Entry](s.logger.Content(), "footer fetch", nil, func() (content.Entry, error) {
		return s.cms.GetFooter(ctx)
	})
}

// GetHeroSection returns the standalone hero section entry.
func (s *ContentService) GetHeroSection(ctx context.Context) (content.Entry, error) {
	return s.cms.GetHeroSection(ctx)
}
