package repositories

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"catalog-sync-worker/domain"
)

const consentButtonSelector = "#onetrust-accept-btn-handler"

var errSessionClosed = errors.New("browser session is not open")

type BrowserConfig struct {
	// RemoteURL is the DevTools WebSocket URL of a running Chrome. Empty
	// launches a local headless Chrome.
	RemoteURL  string
	NavTimeout time.Duration
}

// BrowserSession drives one Chrome tab. Pages and records are rendered one
// at a time through that tab, so it doubles as the page source and the
// document fetcher of the record extractor.
type BrowserSession struct {
	cfg BrowserConfig

	mu      sync.Mutex
	lnch    *launcher.Launcher
	browser *rod.Browser
	page    *rod.Page
}

func NewBrowserSession(cfg BrowserConfig) *BrowserSession {
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 30 * time.Second
	}
	return &BrowserSession{cfg: cfg}
}

// Open launches or connects to Chrome and opens the stealth tab.
func (s *BrowserSession) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.page != nil {
		return nil
	}

	wsURL := s.cfg.RemoteURL
	if wsURL == "" {
		l := launcher.New().
			Headless(true).
			Set("disable-blink-features", "AutomationControlled").
			Set("window-size", "1920,1080")
		u, err := l.Launch()
		if err != nil {
			return fmt.Errorf("browser: launch: %w", err)
		}
		s.lnch = l
		wsURL = u
		log.Printf("Launched local chrome at %s", wsURL)
	}

	b := rod.New().ControlURL(wsURL).Context(ctx)
	if err := b.Connect(); err != nil {
		s.cleanupLocked()
		return fmt.Errorf("browser: connect: %w", err)
	}
	s.browser = b

	page, err := stealth.Page(b)
	if err != nil {
		s.cleanupLocked()
		return fmt.Errorf("browser: create tab: %w", err)
	}
	s.page = page
	return nil
}

func (s *BrowserSession) FetchPage(ctx context.Context, catalog domain.Catalog, page int) (domain.Page, error) {
	pageURL := catalog.PageURL(page)
	doc, err := s.FetchDocument(ctx, pageURL)
	if err != nil {
		return domain.Page{}, err
	}
	p, err := parseListPage(doc, pageURL, catalog)
	if err != nil {
		return p, fmt.Errorf("could not load listing cards from %s: %w", pageURL, err)
	}
	return p, nil
}

// FetchDocument navigates the tab to url and returns the rendered HTML.
func (s *BrowserSession) FetchDocument(ctx context.Context, url string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.page == nil {
		return "", errSessionClosed
	}

	navCtx, cancel := context.WithTimeout(ctx, s.cfg.NavTimeout)
	defer cancel()
	p := s.page.Context(navCtx)

	if err := p.Navigate(url); err != nil {
		return "", fmt.Errorf("%w: navigate %s: %v", domain.ErrTransientFetch, url, err)
	}
	if err := p.WaitLoad(); err != nil {
		log.Printf("browser: wait load timeout for %s: %v", url, err)
	}
	s.acceptConsent(p)

	doc, err := p.HTML()
	if err != nil {
		return "", fmt.Errorf("%w: read DOM of %s: %v", domain.ErrStructural, url, err)
	}
	return doc, nil
}

func (s *BrowserSession) acceptConsent(p *rod.Page) {
	has, btn, err := p.Has(consentButtonSelector)
	if err != nil || !has {
		return
	}
	if err := btn.Click(proto.InputMouseButtonLeft, 1); err != nil {
		log.Printf("browser: consent click failed: %v", err)
	}
}

func (s *BrowserSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cleanupLocked()
}

func (s *BrowserSession) cleanupLocked() error {
	var err error
	if s.page != nil {
		err = s.page.Close()
		s.page = nil
	}
	if s.browser != nil {
		if cErr := s.browser.Close(); cErr != nil && err == nil {
			err = cErr
		}
		s.browser = nil
	}
	if s.lnch != nil {
		s.lnch.Kill()
		s.lnch = nil
	}
	return err
}
