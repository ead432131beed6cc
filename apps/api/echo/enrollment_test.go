package echoapi_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	echoapi "github.com/trezcool/tutorias/apps/api/echo"
	"github.com/trezcool/tutorias/core/enrollment"
)

func Test_enrollmentApi_lifecycle(t *testing.T) {
	f := setup(t)
	anaToken := f.token(t, f.StudentUsers[0])
	tutorToken := f.token(t, f.TutorUser)
	otherTutorToken := f.token(t, f.OtherTutorUser)
	request := marshalObj(t, enrollment.NewEnrollment{SessionID: f.Session.ID})

	var requested enrollment.Enrollment
	t.Run("student requests a seat", func(t *testing.T) {
		rec := f.do(http.MethodPost, "/v1/enrollments", anaToken, request)
		if rec.Code != http.StatusCreated {
			t.Fatalf("failed! code = %v; body %s", rec.Code, rec.Body.String())
		}
		var resp map[string]interface{}
		unmarshal(t, rec, &resp)
		assert.Equal(t, string(enrollment.StateRequested), resp["state"])
		unmarshal(t, rec, &requested)
		assert.Equal(t, f.Students[0].ID, requested.StudentID)
	})

	path := func(action string) string { return fmt.Sprintf("/v1/enrollments/%d/%s", requested.ID, action) }

	runHTTPTests(t, f, []httpTest{
		{
			name: "duplicate request", method: http.MethodPost, path: "/v1/enrollments", body: request, token: anaToken,
			wantCode: http.StatusConflict,
		},
		{
			name: "student cannot approve", method: http.MethodPost, path: path("approve"), token: anaToken,
			wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "permission denied"}),
		},
		{name: "other tutor cannot approve", method: http.MethodPost, path: path("approve"), token: otherTutorToken, wantCode: http.StatusForbidden},
		{
			name: "unknown enrollment", method: http.MethodPost, path: "/v1/enrollments/404/approve", token: tutorToken,
			wantCode: http.StatusNotFound, wantData: marshalObj(t, httpErr{Error: "enrollment not found"}),
		},
		{
			name: "bad id", method: http.MethodPost, path: "/v1/enrollments/lol/approve", token: tutorToken,
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, map[string]string{"id": "must be a positive integer"}),
		},
	})

	t.Run("tutor approves", func(t *testing.T) {
		rec := f.do(http.MethodPost, path("approve"), tutorToken)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; body %s", rec.Code, rec.Body.String())
		}
		var approved enrollment.Enrollment
		unmarshal(t, rec, &approved)
		assert.Equal(t, enrollment.RequestEnrolled, approved.RequestStatus)
		assert.Equal(t, f.TutorUser.ID, approved.ApproverID)
		assert.Len(t, f.Mail.Sent(), 1)
	})

	t.Run("approving twice", func(t *testing.T) {
		rec := f.do(http.MethodPost, path("approve"), tutorToken)
		assert.Equal(t, http.StatusConflict, rec.Code)
		var resp map[string]string
		unmarshal(t, rec, &resp)
		assert.Equal(t, string(enrollment.RequestEnrolled), resp["state"])
	})

	t.Run("withdraw after approval", func(t *testing.T) {
		rec := f.do(http.MethodPost, path("withdraw"), anaToken)
		assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
	})

	t.Run("tutor cannot withdraw", func(t *testing.T) {
		rec := f.do(http.MethodPost, path("withdraw"), tutorToken)
		assert.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())
	})

	t.Run("cancel with reason", func(t *testing.T) {
		rec := f.do(http.MethodPost, path("cancel"), tutorToken, marshalObj(t, echoapi.ReasonRequest{Reason: " schedule changed "}))
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; body %s", rec.Code, rec.Body.String())
		}
		var cancelled enrollment.Enrollment
		unmarshal(t, rec, &cancelled)
		assert.Equal(t, enrollment.StatusCancelled, cancelled.Status)
		assert.Equal(t, "schedule changed", cancelled.Reason)
	})
}

func Test_enrollmentApi_rejectAndWithdraw(t *testing.T) {
	f := setup(t)
	tutorToken := f.token(t, f.TutorUser)
	anaReq := f.AddEnrollment(t, f.Students[0], f.Session, enrollment.StatusPending, enrollment.RequestPending)
	betoReq := f.AddEnrollment(t, f.Students[1], f.Session, enrollment.StatusPending, enrollment.RequestPending)

	t.Run("reject without reason", func(t *testing.T) {
		rec := f.do(http.MethodPost, fmt.Sprintf("/v1/enrollments/%d/reject", anaReq.ID), tutorToken)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; body %s", rec.Code, rec.Body.String())
		}
		var rejected enrollment.Enrollment
		unmarshal(t, rec, &rejected)
		assert.Equal(t, enrollment.StateRejected, rejected.State())
		assert.Equal(t, enrollment.DefaultRejectReason, rejected.Reason)
	})

	t.Run("student withdraws another student's request", func(t *testing.T) {
		rec := f.do(http.MethodPost, fmt.Sprintf("/v1/enrollments/%d/withdraw", betoReq.ID), f.token(t, f.StudentUsers[0]))
		assert.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())
	})

	t.Run("student withdraws own request", func(t *testing.T) {
		rec := f.do(http.MethodPost, fmt.Sprintf("/v1/enrollments/%d/withdraw", betoReq.ID), f.token(t, f.StudentUsers[1]))
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; body %s", rec.Code, rec.Body.String())
		}
		var withdrawn enrollment.Enrollment
		unmarshal(t, rec, &withdrawn)
		assert.False(t, withdrawn.Active)
		assert.Equal(t, enrollment.StateCancelled, withdrawn.State())
	})
}

func Test_enrollmentApi_query(t *testing.T) {
	f := setup(t)
	anaE := f.AddEnrollment(t, f.Students[0], f.Session, enrollment.StatusPending, enrollment.RequestPending)
	betoE := f.AddEnrollment(t, f.Students[1], f.Session, enrollment.StatusActive, enrollment.RequestEnrolled)
	other := f.AddSession(t, "FIS101", 5)
	carlaE := f.AddEnrollment(t, f.Students[2], other, enrollment.StatusPending, enrollment.RequestPending)

	adminToken := f.token(t, f.Admin)
	tutorToken := f.token(t, f.TutorUser)
	anaToken := f.token(t, f.StudentUsers[0])

	runHTTPTests(t, f, []httpTest{
		{name: "Auth required", path: "/v1/enrollments", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{name: "admin sees all", path: "/v1/enrollments", token: adminToken, wantData: marshalList(t, anaE, betoE, carlaE)},
		{name: "admin by session", path: fmt.Sprintf("/v1/enrollments?session=%d", other.ID), token: adminToken, wantData: marshalList(t, carlaE)},
		{name: "admin by status", path: "/v1/enrollments?status=activa", token: adminToken, wantData: marshalList(t, betoE)},
		{
			name: "admin ordered", path: "/v1/enrollments?ordering=-id", token: adminToken,
			wantData: marshalList(t, carlaE, betoE, anaE),
		},
		{name: "student sees own", path: "/v1/enrollments", token: anaToken, wantData: marshalList(t, anaE)},
		{
			name: "student asks for another", path: fmt.Sprintf("/v1/enrollments?student=%d", f.Students[1].ID), token: anaToken,
			wantCode: http.StatusForbidden,
		},
		{
			name: "tutor needs a session", path: "/v1/enrollments", token: tutorToken,
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, map[string]string{"session": "session is required"}),
		},
		{
			name: "tutor by own session", path: fmt.Sprintf("/v1/enrollments?session=%d", f.Session.ID), token: tutorToken,
			wantData: marshalList(t, anaE, betoE),
		},
		{
			name: "other tutor", path: fmt.Sprintf("/v1/enrollments?session=%d", f.Session.ID), token: f.token(t, f.OtherTutorUser),
			wantCode: http.StatusForbidden,
		},
		{name: "retrieve own", path: fmt.Sprintf("/v1/enrollments/%d", anaE.ID), token: anaToken, wantData: marshalObj(t, anaE)},
		{name: "retrieve another's", path: fmt.Sprintf("/v1/enrollments/%d", betoE.ID), token: anaToken, wantCode: http.StatusForbidden},
	})
}

func Test_enrollmentApi_seats(t *testing.T) {
	f := setup(t)
	tutorToken := f.token(t, f.TutorUser)
	f.AddEnrollment(t, f.Students[0], f.Session, enrollment.StatusPending, enrollment.RequestPending)
	f.AddEnrollment(t, f.Students[1], f.Session, enrollment.StatusActive, enrollment.RequestEnrolled)

	seatsPath := fmt.Sprintf("/v1/sessions/%d/seats", f.Session.ID)
	capacityPath := fmt.Sprintf("/v1/sessions/%d/capacity", f.Session.ID)
	capacity := func(n int) []byte { return marshalObj(t, echoapi.CapacityRequest{Capacity: n}) }

	runHTTPTests(t, f, []httpTest{
		{
			name: "seats", path: seatsPath, token: f.token(t, f.StudentUsers[2]),
			wantData: marshalObj(t, enrollment.SeatSummary{SessionID: f.Session.ID, Capacity: 2, Requested: 1, Approved: 1, Activated: 1, Available: 1}),
		},
		{
			name: "student cannot resize", method: http.MethodPut, path: capacityPath, body: capacity(5), token: f.token(t, f.StudentUsers[0]),
			wantCode: http.StatusForbidden,
		},
		{
			name: "capacity below 1", method: http.MethodPut, path: capacityPath, body: capacity(0), token: tutorToken,
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, map[string]string{"capacity": "capacity must be at least 1"}),
		},
		{name: "resized to taken seats", method: http.MethodPut, path: capacityPath, body: capacity(1), token: tutorToken},
		{name: "resized", method: http.MethodPut, path: capacityPath, body: capacity(10), token: tutorToken},
		{
			name: "seats after resize", path: seatsPath, token: tutorToken,
			wantData: marshalObj(t, enrollment.SeatSummary{SessionID: f.Session.ID, Capacity: 10, Requested: 1, Approved: 1, Activated: 1, Available: 9}),
		},
	})
}
