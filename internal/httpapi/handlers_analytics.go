package httpapi

import "net/http"

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	m, err := s.engine.Analytics.Metrics(r.Context(), r.URL.Query().Get("scope"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, m)
}

func (s *Server) handleVelocity(w http.ResponseWriter, r *http.Request) {
	window, err := queryInt(r, "windowDays", 0)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	v, err := s.engine.Analytics.Velocity(r.Context(), r.URL.Query().Get("scope"), window)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, v)
}

func (s *Server) handleBottlenecks(w http.ResponseWriter, r *http.Request) {
	b, err := s.engine.Analytics.Bottlenecks(r.Context(), r.URL.Query().Get("scope"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, b)
}
