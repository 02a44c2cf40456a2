package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	service "github.com/okian/clarisa/internal/app"
	"github.com/okian/clarisa/internal/adapters/repository"
	"github.com/okian/clarisa/internal/domain/model"
	"github.com/okian/clarisa/internal/domain/priority"
	. "github.com/smartystreets/goconvey/convey"
)

func TestKindErrors(t *testing.T) {
	Convey("Given a cause wrapped with a kind", t, func() {
		cause := errors.New("missing titulo")
		err := WrapKind("api.post_activity", ErrBadRequest, cause)

		Convey("Then both the kind and cause match", func() {
			So(errors.Is(err, ErrBadRequest), ShouldBeTrue)
			So(errors.Is(err, cause), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "api.post_activity: bad request: missing titulo")
		})

		Convey("Then nil causes stay nil", func() {
			So(WrapKind("op", ErrBadRequest, nil), ShouldBeNil)
			So(Wrap("op", nil), ShouldBeNil)
		})

		Convey("Then NewKind and Wrap format the op", func() {
			So(NewKind("api.x", ErrBadRequest).Error(), ShouldEqual, "api.x: bad request")
			So(Wrap("api.x", cause).Error(), ShouldEqual, "api.x: missing titulo")
		})
	})
}

func TestStatusFor(t *testing.T) {
	Convey("Given errors from the layers below", t, func() {
		cases := []struct {
			err    error
			status int
			code   string
		}{
			{fmt.Errorf("get: %w", repository.ErrNotFound), http.StatusNotFound, "not_found"},
			{fmt.Errorf("create opportunity: %w", repository.ErrConflict), http.StatusConflict, "conflict"},
			{service.ErrBackpressure, http.StatusTooManyRequests, "backpressure"},
			{service.ErrNotStarted, http.StatusServiceUnavailable, "unavailable"},
			{repository.ErrInvalidLimit, http.StatusBadRequest, "bad_request"},
			{model.ErrInvalidDiagnostic, http.StatusBadRequest, "bad_request"},
			{model.ErrInvalidActivity, http.StatusBadRequest, "bad_request"},
			{model.ErrInvalidStatus, http.StatusBadRequest, "bad_request"},
			{model.ErrInvalidTimestamp, http.StatusBadRequest, "bad_request"},
			{priority.ErrScoreOutOfRange, http.StatusBadRequest, "bad_request"},
			{priority.ErrUnknownStage, http.StatusBadRequest, "bad_request"},
			{Wrap("api.x", priority.ErrUnknownLabel), http.StatusBadRequest, "bad_request"},
			{errors.New("disk on fire"), http.StatusInternalServerError, "internal_error"},
		}

		for _, tc := range cases {
			Convey("Then "+tc.err.Error()+" maps to "+tc.code, func() {
				status, code := statusFor(tc.err)
				So(status, ShouldEqual, tc.status)
				So(code, ShouldEqual, tc.code)
			})
		}
	})
}

func TestMiddlewareClassification(t *testing.T) {
	Convey("Given response statuses", t, func() {
		So(getErrorType(500), ShouldEqual, "server_error")
		So(getErrorType(429), ShouldEqual, "rate_limit")
		So(getErrorType(404), ShouldEqual, "not_found")
		So(getErrorType(409), ShouldEqual, "conflict")
		So(getErrorType(400), ShouldEqual, "client_error")
		So(getErrorType(200), ShouldEqual, "unknown")
		So(getErrorSeverity(503), ShouldEqual, "high")
		So(getErrorSeverity(422), ShouldEqual, "medium")
		So(getErrorSeverity(204), ShouldEqual, "low")
	})
}
