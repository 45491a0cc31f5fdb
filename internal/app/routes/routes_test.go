package routes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/aits/backend/internal/app/controllers"
	"github.com/aits/backend/internal/app/models"
	"github.com/aits/backend/internal/app/models/dto"
	"github.com/aits/backend/internal/app/repositories/inmem"
	"github.com/aits/backend/internal/app/services"
	"github.com/aits/backend/internal/middleware"
	pkgAuth "github.com/aits/backend/internal/pkg/auth"
	"github.com/aits/backend/internal/pkg/filestorage"
	"github.com/aits/backend/internal/pkg/validation"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	pkgAuth.BcryptCost = bcrypt.MinCost
	if err := validation.RegisterGinValidators(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type envelope struct {
	Success bool             `json:"success"`
	Message string           `json:"message"`
	Data    json.RawMessage  `json:"data"`
	Error   *dto.ErrorDetail `json:"error"`
}

type testAPI struct {
	t      *testing.T
	router *gin.Engine
	store  *inmem.Store
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	store := inmem.NewStore()
	files, err := filestorage.NewLocalStorage(t.TempDir(), dto.APIPrefix, 1<<20)
	require.NoError(t, err)
	jwt := pkgAuth.NewJWTService(pkgAuth.JWTConfig{
		SecretKey:       "routes-secret",
		AccessTokenExp:  time.Hour,
		RefreshTokenExp: 24 * time.Hour,
		TokenIssuer:     "aits-test",
	})
	log := zerolog.Nop()
	svc := services.New(services.Deps{Store: store, JWT: jwt, Files: files, Logger: log})

	router := gin.New()
	SetupRouter(router, Controllers{
		Auth:          controllers.NewAuthController(svc.Auth, log),
		Issues:        controllers.NewIssueController(svc.Issues, log),
		Workflow:      controllers.NewWorkflowController(svc.Workflow),
		Comments:      controllers.NewCommentController(svc.Comments),
		Attachments:   controllers.NewAttachmentController(svc.Attachments, log),
		Notifications: controllers.NewNotificationController(svc.Notifications),
		Profiles:      controllers.NewProfileController(svc.Profile),
	}, middleware.NewAuthMiddleware(jwt, store.Users()))

	return &testAPI{t: t, router: router, store: store}
}

func (a *testAPI) send(req *http.Request, token string) (*httptest.ResponseRecorder, envelope) {
	a.t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	var env envelope
	if w.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

func (a *testAPI) do(method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	a.t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, dto.APIPrefix+path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return a.send(req, token)
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

type account struct {
	id    int64
	token string
}

func (a *testAPI) register(path string, body map[string]interface{}) account {
	a.t.Helper()
	w, env := a.do(http.MethodPost, path, "", body)
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	resp := decode[dto.AuthResponse](a.t, env)
	require.NotEmpty(a.t, resp.Token.Access)
	return account{id: resp.User.ID, token: resp.Token.Access}
}

type people struct {
	registrar, lecturer, student account
}

func (a *testAPI) seedPeople() people {
	return people{
		registrar: a.register("/registrar/signup", map[string]interface{}{
			"email": "registrar@cocis.mak.ac.ug", "password": "secret123",
			"firstName": "Grace", "lastName": "Namara", "college": "COCIS",
		}),
		lecturer: a.register("/lecturer/register", map[string]interface{}{
			"email": "okello@cocis.mak.ac.ug", "password": "secret123",
			"fullName": "Dr. Okello", "college": "COCIS", "department": "Computer Science",
		}),
		student: a.register("/register", map[string]interface{}{
			"email": "jane@students.mak.ac.ug", "password": "secret123",
			"fullName": "Jane Doe", "studentRegNumber": "21/U/12345", "yearOfStudy": "2",
			"college": "COCIS", "department": "Computer Science",
		}),
	}
}

func (a *testAPI) createIssue(token string) dto.IssueResponse {
	a.t.Helper()
	w, env := a.do(http.MethodPost, "/issues", token, map[string]interface{}{
		"title":       "Missing coursework mark",
		"description": "My CSC1100 coursework mark is missing",
		"category":    "missing_marks",
		"courseCode":  "CSC1100",
	})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	return decode[dto.IssueResponse](a.t, env)
}

func TestIssueLifecycleOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	p := api.seedPeople()

	issue := api.createIssue(p.student.token)
	assert.Equal(t, models.StatusPending, issue.Status)
	require.NotNil(t, issue.AssignedToID)
	assert.Equal(t, p.registrar.id, *issue.AssignedToID)
	path := fmt.Sprintf("/issues/%d", issue.ID)

	w, env := api.do(http.MethodPatch, path+"/assign", p.student.token, dto.AssignIssueRequest{AssignedToID: p.lecturer.id})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, dto.ErrorCodeForbidden, env.Error.Code)

	w, env = api.do(http.MethodPatch, path+"/assign", p.registrar.token, dto.AssignIssueRequest{AssignedToID: p.lecturer.id})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.StatusAssigned, decode[dto.IssueResponse](t, env).Status)

	w, env = api.do(http.MethodPatch, path+"/start", p.lecturer.token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.StatusInProgress, decode[dto.IssueResponse](t, env).Status)

	w, env = api.do(http.MethodPatch, path+"/resolve", p.lecturer.token, dto.ResolveIssueRequest{ResolutionNote: "  "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "resolution_note", env.Error.Field)

	w, env = api.do(http.MethodPatch, path+"/resolve", p.lecturer.token, dto.ResolveIssueRequest{ResolutionNote: "Mark uploaded to ACMIS"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resolved := decode[dto.IssueResponse](t, env)
	assert.Equal(t, models.StatusResolved, resolved.Status)
	require.NotNil(t, resolved.ResolutionNote)
	assert.Equal(t, "Mark uploaded to ACMIS", *resolved.ResolutionNote)

	w, env = api.do(http.MethodPatch, path+"/resolve", p.lecturer.token, dto.ResolveIssueRequest{ResolutionNote: "again"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.ErrorCodeValidationFailed, env.Error.Code)

	w, env = api.do(http.MethodGet, "/notifications", p.student.token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	notes := decode[dto.NotificationListResponse](t, env)
	assert.GreaterOrEqual(t, len(notes.Notifications), 3)
	assert.Equal(t, int64(len(notes.Notifications)), notes.UnreadCount)

	w, env = api.do(http.MethodPost, "/notifications/read-all", p.student.token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, notes.UnreadCount, decode[dto.MarkAllReadResponse](t, env).Updated)

	w, env = api.do(http.MethodPatch, path+"/close", p.registrar.token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.StatusClosed, decode[dto.IssueResponse](t, env).Status)
}

func TestAuthenticationAndRoleGuards(t *testing.T) {
	api := newTestAPI(t)
	p := api.seedPeople()

	w, env := api.do(http.MethodGet, "/issues", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, dto.ErrorCodeUnauthorized, env.Error.Code)

	w, env = api.do(http.MethodPost, "/token", "", dto.LoginRequest{Username: "21/U/12345", Password: "secret123"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	tokens := decode[dto.TokenResponse](t, env)
	assert.Equal(t, models.RoleStudent, tokens.Role)

	w, env = api.do(http.MethodPost, "/lecturer/login", "", dto.LoginRequest{Username: "21/U/12345", Password: "secret123"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, dto.ErrorCodeInvalidCredentials, env.Error.Code)

	w, _ = api.do(http.MethodPost, "/lecturer/login", "", dto.LoginRequest{Username: "OKELLO@cocis.mak.ac.ug", Password: "secret123"})
	assert.Equal(t, http.StatusOK, w.Code)

	w, env = api.do(http.MethodPost, "/token/refresh", "", dto.RefreshTokenRequest{Refresh: tokens.Refresh})
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEqual(t, tokens.Refresh, decode[dto.TokenResponse](t, env).Refresh)

	w, _ = api.do(http.MethodPost, "/token/refresh", "", dto.RefreshTokenRequest{Refresh: tokens.Refresh})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = api.do(http.MethodGet, "/audit-logs", p.student.token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w, _ = api.do(http.MethodGet, "/audit-logs", p.registrar.token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = api.do(http.MethodGet, "/lecturers", p.lecturer.token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w, env = api.do(http.MethodGet, "/lecturers", p.registrar.token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	lecturers := decode[[]dto.UserResponse](t, env)
	require.Len(t, lecturers, 1)
	assert.Equal(t, p.lecturer.id, lecturers[0].ID)

	w, _ = api.do(http.MethodPost, "/issues", p.lecturer.token, map[string]interface{}{
		"title": "Not a student", "description": "Lecturers cannot raise issues",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = api.do(http.MethodPost, "/logout", p.student.token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRegistrationValidation(t *testing.T) {
	api := newTestAPI(t)
	api.seedPeople()

	w, env := api.do(http.MethodPost, "/register", "", map[string]interface{}{
		"email": "john@students.mak.ac.ug", "password": "secret123", "college": "COCIS",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	fields, ok := env.Error.Details.(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, fields, "studentRegNumber")
	assert.Contains(t, fields, "yearOfStudy")
	assert.Contains(t, fields, "fullName")

	w, env = api.do(http.MethodPost, "/register", "", map[string]interface{}{
		"email": "jane@students.mak.ac.ug", "password": "secret123",
		"fullName": "Jane Again", "studentRegNumber": "21/U/99999", "yearOfStudy": "2", "college": "COCIS",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "email", env.Error.Field)

	w, _ = api.do(http.MethodPost, "/register", "", map[string]interface{}{
		"email": "x@students.mak.ac.ug", "password": "secret123", "yearOfStudy": "9",
		"fullName": "X", "studentRegNumber": "21/U/1", "college": "COCIS",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIssueAccessOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	p := api.seedPeople()
	issue := api.createIssue(p.student.token)
	path := fmt.Sprintf("/issues/%d", issue.ID)

	other := api.register("/register", map[string]interface{}{
		"email": "tom@students.mak.ac.ug", "password": "secret123",
		"fullName": "Tom", "studentRegNumber": "21/U/22222", "yearOfStudy": "1", "college": "COCIS",
	})

	w, _ := api.do(http.MethodGet, path, other.token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w, _ = api.do(http.MethodGet, path, p.lecturer.token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w, _ = api.do(http.MethodGet, "/issues/999", p.registrar.token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w, _ = api.do(http.MethodGet, "/issues/abc", p.registrar.token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env := api.do(http.MethodGet, "/issues?status=pending&sort=-priority", p.registrar.token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[dto.IssueListResponse](t, env)
	require.Len(t, list.Issues, 1)
	assert.Equal(t, issue.ID, list.Issues[0].ID)

	w, _ = api.do(http.MethodGet, "/issues?status=bogus", p.registrar.token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env = api.do(http.MethodGet, "/issues", other.token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[dto.IssueListResponse](t, env).Issues)

	title := "Missing coursework mark for CSC1100"
	w, env = api.do(http.MethodPatch, path, p.student.token, dto.UpdateIssueRequest{Title: &title, Version: &issue.Version})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[dto.IssueResponse](t, env)
	assert.Equal(t, title, updated.Title)

	w, _ = api.do(http.MethodPatch, path, p.student.token, dto.UpdateIssueRequest{Title: &title, Version: &issue.Version})
	assert.Equal(t, http.StatusConflict, w.Code)

	w, _ = api.do(http.MethodDelete, path, p.student.token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w, _ = api.do(http.MethodDelete, path, p.registrar.token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = api.do(http.MethodGet, path, p.student.token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCommentsAndAttachmentsOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	p := api.seedPeople()
	issue := api.createIssue(p.student.token)

	w, env := api.do(http.MethodPost, "/comments", p.student.token, dto.CreateIssueCommentRequest{Issue: issue.ID, Text: "I have attached my results slip"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	comment := decode[dto.CommentResponse](t, env)
	assert.Equal(t, p.student.id, comment.UserID)

	w, _ = api.do(http.MethodPost, fmt.Sprintf("/issues/%d/comments", issue.ID), p.registrar.token, dto.CreateCommentRequest{Text: "Forwarded to the department"})
	require.Equal(t, http.StatusCreated, w.Code)

	w, env = api.do(http.MethodGet, fmt.Sprintf("/comments?issue=%d", issue.ID), p.student.token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]dto.CommentResponse](t, env), 2)

	w, _ = api.do(http.MethodGet, "/comments", p.student.token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile("attachments", "slip.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("results slip for 21/U/12345"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("%s/issues/%d/attachments", dto.APIPrefix, issue.ID), body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w, env = api.send(req, p.student.token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	stored := decode[[]dto.AttachmentResponse](t, env)
	require.Len(t, stored, 1)
	assert.Equal(t, "slip.txt", stored[0].FileName)
	assert.Equal(t, dto.AttachmentDownloadURL(stored[0].ID), stored[0].FileURL)

	req = httptest.NewRequest(http.MethodGet, stored[0].FileURL, nil)
	w, _ = api.send(req, p.registrar.token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "results slip for 21/U/12345", w.Body.String())

	w, _ = api.do(http.MethodGet, fmt.Sprintf("/attachments/%d", stored[0].ID), p.lecturer.token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = api.do(http.MethodDelete, fmt.Sprintf("/attachments/%d", stored[0].ID), p.student.token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, env = api.do(http.MethodGet, fmt.Sprintf("/issues/%d/attachments", issue.ID), p.student.token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[[]dto.AttachmentResponse](t, env))
}

func TestProfilesOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	p := api.seedPeople()
	api.createIssue(p.student.token)

	w, env := api.do(http.MethodGet, "/student-profile", p.student.token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[dto.StudentProfileResponse](t, env).Issues, 1)

	w, _ = api.do(http.MethodGet, "/student-profile", p.lecturer.token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, env = api.do(http.MethodGet, "/registrar-profile", p.registrar.token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	summary := decode[dto.RegistrarProfileResponse](t, env)
	assert.Equal(t, int64(1), summary.OpenIssueCount)

	w, env = api.do(http.MethodGet, "/lecturer/details", p.lecturer.token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[dto.LecturerDetailsResponse](t, env).AssignedIssues)

	name := "Dr. Okello James"
	w, env = api.do(http.MethodPatch, "/profile", p.lecturer.token, dto.UpdateProfileRequest{FullName: &name})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, name, decode[dto.UserResponse](t, env).FullName)

	college := "CEDAT"
	w, env = api.do(http.MethodPatch, "/profile", p.registrar.token, dto.UpdateProfileRequest{College: &college})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "college", env.Error.Field)
}
