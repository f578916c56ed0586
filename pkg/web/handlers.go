package web

import (
	"errors"
	"io"

	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-detect/pkg/app"
	"github.com/teslashibe/go-detect/pkg/capture"
)

// handleIndex serves the dashboard page
func (s *Server) handleIndex(c *fiber.Ctx) error {
	c.Type("html", "utf-8")
	return c.Send(indexHTML)
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"session": s.sessionID,
	})
}

// handleState returns the current session state
func (s *Server) handleState(c *fiber.Ctx) error {
	return c.JSON(s.view(s.ctrl.State()))
}

// handleFile selects the uploaded multipart "file" as the current input
func (s *Server) handleFile(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "missing file field")
	}

	f, err := fh.Open()
	if err != nil {
		return err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return err
	}

	st, err := s.ctrl.SelectFile(fh.Filename, data)
	if err != nil {
		return err
	}
	return c.JSON(s.view(st))
}

// handleProcess uploads the selected file to the detector. A detector
// failure is reported through the state's last_error, not the status code.
func (s *Server) handleProcess(c *fiber.Ctx) error {
	_, err := s.ctrl.Process(c.UserContext())
	switch {
	case errors.Is(err, app.ErrBusy), errors.Is(err, app.ErrNoFile):
		return s.conflict(c, err)
	case err != nil:
		s.logger.Debug("process failed", "error", err)
	}
	return c.JSON(s.view(s.ctrl.State()))
}

func (s *Server) handleClear(c *fiber.Ctx) error {
	st, err := s.ctrl.ClearImage()
	if errors.Is(err, app.ErrCameraActive) {
		return s.conflict(c, err)
	}
	return c.JSON(s.view(st))
}

func (s *Server) handleCameraOpen(c *fiber.Ctx) error {
	st, err := s.ctrl.OpenCamera(c.UserContext())
	switch {
	case errors.Is(err, app.ErrNoCamera):
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	case err != nil:
		return err
	}
	return c.JSON(s.view(st))
}

func (s *Server) handleCameraClose(c *fiber.Ctx) error {
	if err := s.ctrl.CloseCamera(); err != nil {
		s.logger.Warn("camera close", "error", err)
	}
	return c.JSON(s.view(s.ctrl.State()))
}

// handleOriginalImage serves the selected file as uploaded
func (s *Server) handleOriginalImage(c *fiber.Ctx) error {
	data, contentType, ok := s.ctrl.OriginalImage()
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "no image selected")
	}
	if contentType == "" {
		contentType = capture.DetectContentType(data)
	}
	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.Send(data)
}

func (s *Server) conflict(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusConflict).JSON(fiber.Map{
		"error": err.Error(),
		"state": s.view(s.ctrl.State()),
	})
}
