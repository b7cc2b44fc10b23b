package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/go-rod/rod"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/leadscout/auth"
	"github.com/hazyhaar/leadscout/browser"
	"github.com/hazyhaar/leadscout/coordinator"
	"github.com/hazyhaar/leadscout/export"
	"github.com/hazyhaar/leadscout/mcptools"
	"github.com/hazyhaar/leadscout/pace"
	"github.com/hazyhaar/leadscout/permalink"
	"github.com/hazyhaar/leadscout/scraper"
	"github.com/hazyhaar/leadscout/transport"
	"github.com/hazyhaar/leadscout/widget"
)

const version = "0.3.0"

func runServe(ctx context.Context, noBrowser bool) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	var (
		a    *app
		mgr  *browser.Manager
		nav  *browser.Navigator
		opts []coordinator.Option
	)
	if !noBrowser {
		mgr = browser.NewManager(browserConfig(cfg, logger, false))
		// a is assigned before the heartbeat can trigger a navigation.
		nav = browser.NewNavigator(mgr, func(ctx context.Context, page *rod.Page, url string) {
			scanPage(ctx, a, page, url)
		}, logger)
		opts = append(opts, coordinator.WithNavigator(nav))
	}

	a, err = newApp(ctx, cfg, logger, opts...)
	if err != nil {
		return err
	}
	defer a.Close()
	log := a.logger

	if mgr != nil {
		if err := mgr.Start(ctx); err != nil {
			return err
		}
		defer mgr.Close()
		defer nav.Close()
	}

	hb := coordinator.NewHeartbeat(a.coord, a.gate, a.cfg.Autorun.Heartbeat)
	if err := hb.Start(ctx); err != nil {
		return err
	}
	defer hb.Stop()

	handler := transport.NewHandler(a.disp, transport.Config{
		Token:  a.cfg.Token,
		Logger: log,
	})
	srv := &http.Server{
		Addr:              a.cfg.Listen,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("leadscout: listening", "addr", a.cfg.Listen, "browser", !noBrowser)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	log.Info("leadscout: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// scanPage runs one scan when url is a group page. Non-group pages are
// ignored.
func scanPage(ctx context.Context, a *app, page *rod.Page, url string) {
	if _, ok := permalink.GroupSlug(url); !ok {
		return
	}
	s := scraper.New(a.scraperConfig(url), browser.NewPage(page), a.disp, pace.New())
	res, err := s.Run(ctx)
	if err != nil {
		a.logger.Warn("leadscout: scan failed", "url", url, "error", err)
		return
	}
	a.logger.Info("leadscout: scan finished",
		"url", url,
		"state", res.State,
		"reason", res.Reason,
		"scanned", res.Scanned,
		"matches", res.Matches,
		"reported", res.Reported,
	)
}

func runScrape(ctx context.Context, groupURL string) error {
	if _, ok := permalink.GroupSlug(groupURL); !ok {
		return fmt.Errorf("not a group URL: %s", groupURL)
	}
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	mgr := browser.NewManager(a.browserConfig(false))
	if err := mgr.Start(ctx); err != nil {
		return err
	}
	defer mgr.Close()

	page, err := mgr.Open(ctx, groupURL)
	if err != nil {
		return err
	}
	defer page.Close()

	s := scraper.New(a.scraperConfig(groupURL), browser.NewPage(page), a.disp, pace.New())
	res, err := s.Run(ctx)
	if err != nil {
		return err
	}
	return printJSON(os.Stdout, res)
}

func runBrowse(ctx context.Context, url string) error {
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	mgr := browser.NewManager(a.browserConfig(true))
	if err := mgr.Start(ctx); err != nil {
		return err
	}
	defer mgr.Close()

	page, err := mgr.Open(ctx, url)
	if err != nil {
		return err
	}
	defer page.Close()

	surface, err := browser.NewSurface(ctx, page)
	if err != nil {
		return err
	}
	defer surface.Close()

	att := widget.Attach(ctx, surface, a.disp, a.widgetOptions())
	defer att.Detach()

	go scanPage(ctx, a, page, url)

	a.logger.Info("leadscout: browsing", "url", url)
	select {
	case <-ctx.Done():
	case <-att.Done():
	}
	return nil
}

func runLogin(ctx context.Context, email, password string, signup bool) error {
	if password == "" {
		return errors.New("password is required")
	}
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if signup {
		sess, err := a.auth.SignUp(ctx, email, password)
		if err != nil {
			return err
		}
		if sess.AccessToken == "" {
			fmt.Println("signup pending: confirm your email, then run login again")
			return nil
		}
		fmt.Printf("signed up as %s\n", sess.User.Email)
		return nil
	}

	sess, err := a.auth.SignIn(ctx, email, password)
	if err != nil {
		return err
	}
	fmt.Printf("signed in as %s\n", sess.User.Email)
	return nil
}

func runLogout(ctx context.Context) error {
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.auth.SignOut(ctx); err != nil {
		return err
	}
	fmt.Println("signed out")
	return nil
}

func runExport(ctx context.Context, out, remote string) error {
	var w io.Writer = os.Stdout
	if out != "" {
		f, err := os.Create(out)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	if remote != "" {
		token := os.Getenv("LEADSCOUT_TOKEN")
		return transport.NewClient(remote, token).ExportCSV(ctx, w)
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	leads, err := a.coord.ListLeads(ctx)
	if err != nil {
		return err
	}
	return export.WriteCSV(w, leads, export.Options{})
}

func runMCP(ctx context.Context) error {
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := mcp.NewServer(&mcp.Implementation{Name: "leadscout", Version: version}, nil)
	mcptools.Register(srv, a.disp)
	a.logger.Info("leadscout: mcp on stdio")
	return srv.Run(ctx, &mcp.StdioTransport{})
}

func runHashPassword(w io.Writer, password string) error {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, hash)
	return err
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
