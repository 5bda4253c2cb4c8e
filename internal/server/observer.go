package server

import (
	"context"
	"errors"
	"fmt"
	"kanaliiga-observer/internal/domain"
	"kanaliiga-observer/internal/service"
	"net/http"
	"strconv"

	"connectrpc.com/connect"
	"github.com/rs/zerolog"
)

const (
	ServicePath          = "/kanaliiga.v1.ObserverService/"
	ListSeriesProcedure  = ServicePath + "ListSeries"
	ResolveViewProcedure = ServicePath + "ResolveView"
	ObserverPackPath     = "/observer.zip"
)

type ListSeriesRequest struct {
	ShowPast     bool `json:"showPast"`
	ShowUpcoming bool `json:"showUpcoming"`
}

type ListSeriesResponse struct {
	Series []domain.Series `json:"series"`
}

type ObserverServer struct {
	selection *service.SelectionService
	observer  *service.ObserverService
	logger    zerolog.Logger
}

func NewObserverServer(selection *service.SelectionService, observer *service.ObserverService, logger zerolog.Logger) *ObserverServer {
	return &ObserverServer{selection: selection, observer: observer, logger: logger}
}

// Handler serves the connect procedures under ServicePath.
func (s *ObserverServer) Handler() (string, http.Handler) {
	mux := http.NewServeMux()
	mux.Handle(ListSeriesProcedure, connect.NewUnaryHandler(ListSeriesProcedure, s.ListSeries, CodecOption()))
	mux.Handle(ResolveViewProcedure, connect.NewUnaryHandler(ResolveViewProcedure, s.ResolveView, CodecOption()))
	return ServicePath, mux
}

func (s *ObserverServer) ListSeries(ctx context.Context, req *connect.Request[ListSeriesRequest]) (*connect.Response[ListSeriesResponse], error) {
	series, err := s.selection.ListSeries(ctx, req.Msg.ShowPast, req.Msg.ShowUpcoming)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(&ListSeriesResponse{Series: series}), nil
}

func (s *ObserverServer) ResolveView(ctx context.Context, req *connect.Request[service.Selection]) (*connect.Response[service.View], error) {
	view, err := s.selection.ResolveView(ctx, *req.Msg)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to resolve view")
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(view), nil
}

// ServeObserverPack streams Observer.zip for ?season=&league=[&map=].
// With a map, logos already shown on that map's landing view are reused.
func (s *ObserverServer) ServeObserverPack(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := zerolog.Ctx(ctx)
	sel := service.ParseSelection(r.URL.Query())
	if sel.Season == "" || sel.League == "" {
		http.Error(w, "season and league are required", http.StatusBadRequest)
		return
	}

	series, err := s.selection.FindSeries(ctx, sel.Season)
	if errors.Is(err, service.ErrSeriesNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		logger.Error().Err(err).Msg("failed to look up series")
		http.Error(w, "failed to fetch series", http.StatusBadGateway)
		return
	}

	req := service.PackRequest{Series: *series, League: sel.League}
	if sel.Map != "" {
		landing, err := s.selection.LandingFor(ctx, *series, sel.League, sel.Map)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to load landing logos, using registrations")
		}
		req.Logos = landing.Logos
	}

	pack, err := s.observer.Build(ctx, req)
	if err != nil {
		logger.Error().Err(err).Msg("failed to build observer pack")
		http.Error(w, "failed to build observer pack", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", service.PackFileName))
	w.Header().Set("Content-Length", strconv.Itoa(len(pack.Archive)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(pack.Archive); err != nil {
		logger.Warn().Err(err).Msg("failed to write observer pack")
	}
}
