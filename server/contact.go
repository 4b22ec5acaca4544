package server

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/youyeongjin90/kimsabu/store"
)

// contactRequest is the public contact form. Email and location are
// optional.
type contactRequest struct {
	Name     string `json:"name" validate:"required"`
	Phone    string `json:"phone" validate:"required"`
	Email    string `json:"email"`
	Service  string `json:"service" validate:"required"`
	Location string `json:"location"`
	Message  string `json:"message" validate:"required"`
}

func (r *contactRequest) trim() {
	for _, f := range []*string{&r.Name, &r.Phone, &r.Email, &r.Service, &r.Location, &r.Message} {
		*f = strings.TrimSpace(*f)
	}
}

func (s *Server) createInquiry(c echo.Context) error {
	var req contactRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, msgMissingFields)
	}
	req.trim()
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, msgMissingFields)
	}

	q := &store.Inquiry{
		Name:     req.Name,
		Phone:    req.Phone,
		Email:    req.Email,
		Service:  req.Service,
		Location: req.Location,
		Message:  req.Message,
	}
	if err := s.inquiries.CreateInquiry(c.Request().Context(), q); err != nil {
		s.log.Error("store inquiry", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, msgSaveFailed)
	}
	s.metrics.inquiryStored()
	s.log.Info("inquiry received", zap.String("id", q.ID), zap.String("service", q.Service))
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) listInquiries(c echo.Context) error {
	list, err := s.inquiries.ListInquiries(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list)
}
