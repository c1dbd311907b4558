package reports

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"studyflow-backend/internal/analytics"
	"studyflow-backend/internal/auth"
	"studyflow-backend/internal/httpjson"
	"studyflow-backend/internal/validate"
)

func TimeTrendsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			httpjson.Error(w, http.StatusUnauthorized, "Not authorized")
			return
		}

		days := 30
		if v := r.URL.Query().Get("days"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				httpjson.Error(w, http.StatusBadRequest, "days must be a positive integer")
				return
			}
			days = n
		}

		out, err := svc.TimeTrends(r.Context(), uid, days, time.Now())
		if err != nil {
			httpjson.Error(w, http.StatusInternalServerError, err.Error())
			return
		}
		httpjson.OK(w, out)
	}
}

func ProductivityHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			httpjson.Error(w, http.StatusUnauthorized, "Not authorized")
			return
		}

		out, err := svc.Productivity(r.Context(), uid, time.Now())
		if err != nil {
			httpjson.Error(w, http.StatusInternalServerError, err.Error())
			return
		}
		httpjson.OK(w, out)
	}
}

func SubjectPerformanceHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			httpjson.Error(w, http.StatusUnauthorized, "Not authorized")
			return
		}

		out, err := svc.SubjectPerformance(r.Context(), uid)
		if err != nil {
			httpjson.Error(w, http.StatusInternalServerError, err.Error())
			return
		}
		httpjson.OK(w, out)
	}
}

func PeriodReportHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			httpjson.Error(w, http.StatusUnauthorized, "Not authorized")
			return
		}

		out, err := svc.PeriodReport(r.Context(), uid, r.PathValue("period"), time.Now())
		if errors.Is(err, ErrInvalidPeriod) {
			httpjson.Error(w, http.StatusBadRequest, `Invalid period. Use "weekly" or "monthly"`)
			return
		}
		if err != nil {
			httpjson.Error(w, http.StatusInternalServerError, err.Error())
			return
		}
		httpjson.OK(w, out)
	}
}

func ExportJSONHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			httpjson.Error(w, http.StatusUnauthorized, "Not authorized")
			return
		}

		out, ok := export(w, r, svc, uid)
		if !ok {
			return
		}
		w.Header().Set("Content-Disposition", `attachment; filename="studyflow_export.json"`)
		httpjson.OK(w, out)
	}
}

func ExportCSVHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			httpjson.Error(w, http.StatusUnauthorized, "Not authorized")
			return
		}

		out, ok := export(w, r, svc, uid)
		if !ok {
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="studyflow_export.csv"`)
		w.WriteHeader(http.StatusOK)
		_ = out.WriteCSV(w)
	}
}

// export parses the shared query parameters, runs the export and records it.
// It writes the error response itself and reports whether to continue.
func export(w http.ResponseWriter, r *http.Request, svc *Service, uid int) (Export, bool) {
	q := r.URL.Query()
	f := ExportFilter{Type: validate.OrDefault(q.Get("type"), "all")}
	if q.Get("startDate") != "" && q.Get("endDate") != "" {
		from, err := validate.ParseDate(q.Get("startDate"))
		if err != nil {
			httpjson.Error(w, http.StatusBadRequest, "startDate: "+err.Error())
			return Export{}, false
		}
		to, err := validate.ParseDate(q.Get("endDate"))
		if err != nil {
			httpjson.Error(w, http.StatusBadRequest, "endDate: "+err.Error())
			return Export{}, false
		}
		f.From, f.To = &from, &to
	}

	out, err := svc.Export(r.Context(), uid, f)
	if errors.Is(err, ErrInvalidExportType) {
		httpjson.Error(w, http.StatusBadRequest, "Invalid export type")
		return Export{}, false
	}
	if err != nil {
		httpjson.Error(w, http.StatusInternalServerError, err.Error())
		return Export{}, false
	}

	analytics.LogRequest(r, svc.DB, uid, "data_exported", map[string]any{"type": f.Type})
	return out, true
}
