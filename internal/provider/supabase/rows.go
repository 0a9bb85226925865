package supabase

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sakif/student-library/internal/apperror"
	"github.com/sakif/student-library/internal/model"
	"github.com/sakif/student-library/internal/provider"
)

// PostgREST answers 406 with this code when a single-object request
// matches no rows.
const codeNoRows = "PGRST116"

// studentRow keeps created_at as text: PostgREST renders timestamp and
// timestamptz columns differently.
type studentRow struct {
	ID        string `json:"id"`
	FullName  string `json:"full_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	CreatedAt string `json:"created_at"`
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999-07",
	"2006-01-02 15:04:05.999999999",
}

func parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func (r *studentRow) student() *model.Student {
	s := &model.Student{
		ID:       r.ID,
		FullName: r.FullName,
		Email:    r.Email,
		Phone:    r.Phone,
	}
	if t, ok := parseTimestamp(r.CreatedAt); ok {
		s.CreatedAt = &t
	}
	return s
}

func (c *Client) FetchStudent(ctx context.Context, id string) (*model.Student, error) {
	tok, _ := c.current()

	resp, err := c.backend.do(ctx, request{
		method: http.MethodGet,
		path:   "/rest/v1/" + provider.StudentsTable,
		query: url.Values{
			"select": {"*"},
			"id":     {"eq." + id},
		},
		headers: map[string]string{"Accept": "application/vnd.pgrst.object+json"},
		token:   tok,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		err := decodeError(resp)
		if resp.StatusCode == http.StatusNotAcceptable || errorCode(err) == codeNoRows {
			return nil, apperror.NotFound("student", id)
		}
		return nil, err
	}

	var row studentRow
	if err := decodeJSON(resp, &row); err != nil {
		return nil, err
	}
	return row.student(), nil
}

func (c *Client) InsertStudent(ctx context.Context, student *model.Student) error {
	if student == nil || student.ID == "" {
		return fmt.Errorf("supabase: student row needs an id")
	}
	tok, _ := c.current()

	// created_at is left to the column default.
	payload := []map[string]string{{
		"id":        student.ID,
		"full_name": student.FullName,
		"email":     student.Email,
		"phone":     student.Phone,
	}}

	resp, err := c.backend.do(ctx, request{
		method:  http.MethodPost,
		path:    "/rest/v1/" + provider.StudentsTable,
		body:    payload,
		headers: map[string]string{"Prefer": "return=minimal"},
		token:   tok,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return decodeError(resp)
	}
	return nil
}
