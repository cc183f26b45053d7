package middleware

import (
	"fmt"
	"net/http"

	"github.com/getsentry/sentry-go"
)

// SentryMiddleware runs each request in its own transaction on a cloned hub,
// named by the matched route once routing is done. Panics are reported and
// re-raised; 5xx responses are reported as messages. Without an initialized
// client the transaction is never sent.
func SentryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub := sentry.GetHubFromContext(r.Context())
		if hub == nil {
			hub = sentry.CurrentHub().Clone()
		}

		options := []sentry.SpanOption{
			sentry.WithOpName("http.server"),
			sentry.WithTransactionSource(sentry.SourceURL),
		}
		if trace := r.Header.Get(sentry.SentryTraceHeader); trace != "" {
			options = append(options, sentry.ContinueFromHeaders(trace, r.Header.Get(sentry.SentryBaggageHeader)))
		}

		ctx := sentry.SetHubOnContext(r.Context(), hub)
		transaction := sentry.StartTransaction(ctx, fmt.Sprintf("%s %s", r.Method, r.URL.Path), options...)
		defer transaction.Finish()
		r = r.WithContext(transaction.Context())

		scope := hub.Scope()
		scope.SetContext("request", sentry.Context{
			"method":      r.Method,
			"path":        r.URL.Path,
			"query":       r.URL.RawQuery,
			"remote_addr": clientIP(r),
		})
		if id := GetRequestID(r.Context()); id != "" {
			scope.SetTag("request_id", id)
			transaction.SetTag("request_id", id)
		}
		if system := requestSystem(r); system != "" {
			scope.SetTag("vocab.system", system)
			transaction.SetTag("vocab.system", system)
		}

		defer func() {
			if err := recover(); err != nil {
				transaction.Status = sentry.SpanStatusInternalError
				hub.RecoverWithContext(r.Context(), err)
				panic(err)
			}
		}()

		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		status := rec.Status()
		transaction.Name = fmt.Sprintf("%s %s", r.Method, routePattern(r))
		transaction.Source = sentry.SourceRoute
		transaction.Status = sentry.HTTPtoSpanStatus(status)
		transaction.SetData("http.response.status_code", status)

		if clientID := r.Header.Get(ClientIDHeader); clientID != "" {
			scope.SetTag("client_id", clientID)
		}
		if status >= http.StatusInternalServerError {
			hub.CaptureMessage(fmt.Sprintf("HTTP %d: %s", status, http.StatusText(status)))
		}
	})
}
