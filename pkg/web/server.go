// Package web serves the detection dashboard: a single page that renders
// the session state pushed over websockets, plus a small JSON API that
// drives the controller.
package web

import (
	"context"
	_ "embed"
	"errors"
	"log/slog"
	"net"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"github.com/teslashibe/go-detect/pkg/app"
	"github.com/teslashibe/go-detect/pkg/capture"
	"github.com/teslashibe/go-detect/pkg/hub"
	"github.com/teslashibe/go-detect/pkg/session"
)

//go:embed static/index.html
var indexHTML []byte

// maxUploadBytes bounds a dashboard file upload.
const maxUploadBytes = 32 << 20

// Config configures the dashboard server.
type Config struct {
	// Port to listen on, without the colon.
	Port string

	// Debug enables request logging.
	Debug bool

	Logger *slog.Logger
}

// Server is the web dashboard server
type Server struct {
	app       *fiber.App
	port      string
	ctrl      *app.Controller
	sessionID string
	logger    *slog.Logger

	// Hubs for websocket broadcast
	stateHub  *hub.Hub
	cameraHub *hub.Hub

	stop        context.CancelFunc
	unsubscribe func()
}

// NewServer creates the dashboard for ctrl. The websocket hubs start
// immediately; Shutdown stops them.
func NewServer(ctrl *app.Controller, cfg Config) *Server {
	l := cfg.Logger
	if l == nil {
		l = slog.Default()
	}

	s := &Server{
		port:      cfg.Port,
		ctrl:      ctrl,
		sessionID: uuid.NewString(),
		logger:    l.With("component", "web"),
		stateHub:  hub.New("state", l),
		cameraHub: hub.New("camera", l),
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.stop = cancel
	go s.stateHub.Run(ctx)
	go s.cameraHub.Run(ctx)

	s.unsubscribe = ctrl.Store().Subscribe(s.publishState)
	ctrl.SetFrameHook(s.publishFrame)
	s.publishState(ctrl.State())

	fapp := fiber.New(fiber.Config{
		AppName:               "go-detect dashboard",
		DisableStartupMessage: true,
		BodyLimit:             maxUploadBytes,
		ErrorHandler:          s.handleError,
	})

	fapp.Use(recover.New())
	fapp.Use(cors.New())
	if cfg.Debug {
		fapp.Use(logger.New())
	}

	fapp.Get("/", s.handleIndex)
	fapp.Get("/health", s.handleHealth)

	api := fapp.Group("/api")
	api.Get("/state", s.handleState)
	api.Post("/file", s.handleFile)
	api.Post("/process", s.handleProcess)
	api.Post("/clear", s.handleClear)
	api.Post("/camera/open", s.handleCameraOpen)
	api.Post("/camera/close", s.handleCameraClose)
	api.Get("/image/original", s.handleOriginalImage)

	// WebSocket upgrade middleware
	fapp.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	fapp.Get("/ws/state", websocket.New(s.serveHub(s.stateHub)))
	fapp.Get("/ws/camera", websocket.New(s.serveHub(s.cameraHub)))

	s.app = fapp
	return s
}

// App returns the fiber app, for tests and embedding.
func (s *Server) App() *fiber.App { return s.app }

// SessionID identifies this dashboard process.
func (s *Server) SessionID() string { return s.sessionID }

// Start listens on the configured port. It blocks until Shutdown.
func (s *Server) Start() error {
	s.logger.Info("dashboard listening", "url", "http://localhost:"+s.port, "session", s.sessionID)
	return s.app.Listen(":" + s.port)
}

// Serve accepts connections on ln. It blocks until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("dashboard listening", "addr", ln.Addr().String(), "session", s.sessionID)
	return s.app.Listener(ln)
}

// StartAsync starts the web server in a goroutine
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil {
			s.logger.Error("web server stopped", "error", err)
		}
	}()
}

// Shutdown stops accepting requests, then stops the hubs.
func (s *Server) Shutdown(ctx context.Context) error {
	s.unsubscribe()
	s.ctrl.SetFrameHook(nil)
	err := s.app.ShutdownWithContext(ctx)
	s.stop()
	return err
}

// StateView is the JSON pushed to the page.
type StateView struct {
	session.State
	SessionID string      `json:"session_id"`
	Counts    []ClassView `json:"counts"`
	ShowGrid  bool        `json:"show_grid"`
	Boxes     []string    `json:"boxes"`
}

// ClassView is one summary line.
type ClassView struct {
	ClassName string `json:"class_name"`
	Count     int    `json:"count"`
	Phrase    string `json:"phrase"`
}

func (s *Server) view(st session.State) StateView {
	v := StateView{
		State:     st,
		SessionID: s.sessionID,
		ShowGrid:  st.ShowGrid(),
	}
	for _, cc := range st.Batch.ClassCounts() {
		v.Counts = append(v.Counts, ClassView{ClassName: cc.ClassName, Count: cc.Count, Phrase: cc.Phrase()})
	}
	for _, d := range st.Batch.Detections {
		v.Boxes = append(v.Boxes, d.String())
	}
	return v
}

// publishState runs under the store lock and must not block.
func (s *Server) publishState(st session.State) {
	if err := s.stateHub.BroadcastJSON(s.view(st)); err != nil {
		s.logger.Warn("encode state", "error", err)
	}
}

func (s *Server) publishFrame(f *capture.Frame) {
	if s.cameraHub.ClientCount() == 0 {
		return
	}
	s.cameraHub.BroadcastBinary(f.Data)
}

func (s *Server) serveHub(h *hub.Hub) func(*websocket.Conn) {
	return func(conn *websocket.Conn) {
		client := hub.NewClient(h, conn)
		if client == nil {
			return
		}
		client.Run()
	}
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code >= fiber.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.Path(), "error", err)
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}
