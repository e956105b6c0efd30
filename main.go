package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Scriptzstarling/meme-Forge/assets"
	"github.com/Scriptzstarling/meme-Forge/config"
	"github.com/Scriptzstarling/meme-Forge/core"
	"github.com/Scriptzstarling/meme-Forge/handlers/api/captions"
	"github.com/Scriptzstarling/meme-Forge/handlers/api/health"
	"github.com/Scriptzstarling/meme-Forge/handlers/api/images"
	"github.com/Scriptzstarling/meme-Forge/handlers/api/memes"
	templatesapi "github.com/Scriptzstarling/meme-Forge/handlers/api/templates"
	"github.com/Scriptzstarling/meme-Forge/handlers/auth"
	"github.com/Scriptzstarling/meme-Forge/media"
	authMiddleware "github.com/Scriptzstarling/meme-Forge/middleware"
	"github.com/Scriptzstarling/meme-Forge/render"
	"github.com/Scriptzstarling/meme-Forge/stores"
	"github.com/Scriptzstarling/meme-Forge/templates"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type server struct {
	store     core.MemeStore
	captions  *captions.Proxy
	images    *images.Generator
	renderer  *memes.Renderer
	templates *templates.Catalog
}

func setupRouter(s *server) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Logger)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Content-Length", "X-CSRF-Token", "Origin", "X-Requested-With"},
		ExposedHeaders:   []string{"Content-Disposition", "X-Meme-Id"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}))

	r.Get("/health", health.HandleHealth())
	r.Post("/generate-image", s.images.HandleGenerate())

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", health.HandleHealth())
		r.Post("/generate-image", s.images.HandleGenerate())
		r.Get("/templates", templatesapi.HandleList(s.templates))

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.AuthJWT)
			r.Post("/captions", s.captions.HandleCaptions())
			r.Route("/memes", func(r chi.Router) {
				r.Get("/", memes.HandleListMemes(s.store))
				r.Post("/render", s.renderer.HandleRender())
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", memes.HandleGetMeme(s.store))
					r.Delete("/", memes.HandleDeleteMeme(s.store))
				})
			})
		})
	})

	r.Route("/auth", func(r chi.Router) {
		r.Get("/login", auth.HandleLogin)
		r.Get("/callback", auth.HandleCallback)
	})

	static := http.FileServer(http.FS(assets.FS))
	r.Handle("/images/*", static)
	r.Handle("/"+templates.ManifestFile, static)

	return r
}

// newResolver wires the media fetcher and, when ffmpeg is installed, video
// probing. Without ffmpeg video backgrounds fail with media.ErrUnsupported.
func newResolver(cfg config.Media) *media.Resolver {
	fetcher := media.NewHTTPFetcher(assets.FS, cfg.FetchTimeout)
	ff, err := media.NewFFmpeg(cfg.FFmpegPath, cfg.FFprobePath, "")
	if err != nil {
		logrus.WithField("error", err).Warn("ffmpeg not available, video backgrounds disabled")
		return media.NewResolver(fetcher, nil)
	}
	return media.NewResolver(fetcher, ff)
}

func waitForShutdown(srv *http.Server, store core.MemeStore) {
	signalC := make(chan os.Signal, 1)
	signal.Notify(signalC, os.Interrupt, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGQUIT)
	s := <-signalC
	logrus.WithField("signal", s).Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logrus.WithField("error", err).Error("Failed to shut down server")
	}
	if c, ok := store.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			logrus.WithField("error", err).Error("Failed to close store")
		}
	}
}

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found")
	}

	listenAddress := flag.String("listen", "", "The address to listen on (overrides config and PORT).")
	logLevel := flag.String("loglevel", "info", "The log level (debug, info, warn, error).")
	configPath := flag.String("config", "", "Path to a YAML config file (default ./config.yaml if present).")
	flag.Parse()

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	if *listenAddress != "" {
		cfg.Listen = *listenAddress
	}

	auth.InitAuth(cfg.Auth)

	store, err := stores.GetStore(context.Background(), cfg.Storage)
	if err != nil {
		logrus.Fatalf("Failed to create store: %v", err)
	}

	fonts, err := render.NewFontSet(cfg.Media.FontPath)
	if err != nil {
		logrus.Fatalf("Failed to load fonts: %v", err)
	}

	client := &http.Client{Timeout: 2 * time.Minute}
	s := &server{
		store:     store,
		captions:  captions.New(cfg.OpenAI, client),
		images:    images.New(cfg.HuggingFace, client),
		renderer:  memes.NewRenderer(newResolver(cfg.Media), render.New(fonts), store),
		templates: templates.Load(assets.FS),
	}

	srv := &http.Server{Addr: cfg.Listen, Handler: setupRouter(s)}
	logrus.WithField("addr", cfg.Listen).Info("starting server")
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithField("event", "start server").Fatal(err)
		}
	}()

	waitForShutdown(srv, store)
}
