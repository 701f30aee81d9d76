package waitlist

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/akeren/lore-anchor-waitlist/internal/models"
	apperrors "github.com/akeren/lore-anchor-waitlist/pkg/errors"
	"github.com/go-resty/resty/v2"
)

type SupabaseOptions struct {
	URL     string
	Key     string
	Table   string
	Timeout time.Duration
	// HTTPClient overrides the transport; Timeout still applies.
	HTTPClient *http.Client
}

// supabaseRepository talks to the PostgREST endpoint exposed by Supabase.
type supabaseRepository struct {
	endpoint string
	client   *resty.Client
}

type supabaseInsert struct {
	Email     string  `json:"email"`
	RefSource *string `json:"ref_source"`
}

type postgrestError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func (e *postgrestError) Error() string {
	return fmt.Sprintf("postgrest error %s: %s", e.Code, e.Message)
}

func NewSupabaseRepository(opts SupabaseOptions) (WaitlistRepository, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.URL), "/")
	if base == "" || opts.Key == "" {
		return nil, apperrors.NewInvalidRequestError("supabase url and key are required", nil)
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, apperrors.NewInvalidRequestError("supabase url is invalid", err)
	}

	table := opts.Table
	if table == "" {
		table = models.WaitlistTableName
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := resty.New()
	if opts.HTTPClient != nil {
		client = resty.NewWithClient(opts.HTTPClient)
	}
	client.
		SetBaseURL(base).
		SetTimeout(timeout).
		SetHeader("apikey", opts.Key).
		SetHeader("Authorization", "Bearer "+opts.Key)

	return &supabaseRepository{
		endpoint: "/rest/v1/" + url.PathEscape(table),
		client:   client,
	}, nil
}

func (sr *supabaseRepository) CreateEntry(ctx context.Context, entry *models.WaitlistEntry) error {
	resp, err := sr.client.R().
		SetContext(ctx).
		SetHeader("Prefer", "return=minimal").
		SetBody(supabaseInsert{Email: entry.Email, RefSource: entry.RefSource}).
		Post(sr.endpoint)
	if err != nil {
		return apperrors.NewDatabaseError(MsgRegistrationFailed, err)
	}

	if resp.IsSuccess() {
		return nil
	}

	pgErr := decodePostgrestError(resp)
	if pgErr.Code == apperrors.PgUniqueViolationCode {
		return apperrors.NewConflictError(MsgAlreadyRegistered, pgErr)
	}

	return apperrors.NewDatabaseError(MsgRegistrationFailed, pgErr)
}

func (sr *supabaseRepository) CountEntries(ctx context.Context) (int64, error) {
	resp, err := sr.client.R().
		SetContext(ctx).
		SetHeader("Prefer", "count=exact").
		SetQueryParam("select", "*").
		Head(sr.endpoint)
	if err != nil {
		return 0, apperrors.NewDatabaseError("unable to count waitlist entries", err)
	}

	if !resp.IsSuccess() {
		return 0, apperrors.NewDatabaseError("unable to count waitlist entries",
			fmt.Errorf("unexpected status %d", resp.StatusCode()))
	}

	count, err := parseContentRangeTotal(resp.Header().Get("Content-Range"))
	if err != nil {
		return 0, apperrors.NewDatabaseError("unable to count waitlist entries", err)
	}

	return count, nil
}

func (sr *supabaseRepository) Ping(ctx context.Context) error {
	_, err := sr.CountEntries(ctx)
	return err
}

// decodePostgrestError reads the error body whatever its Content-Type.
func decodePostgrestError(resp *resty.Response) *postgrestError {
	pgErr := &postgrestError{}
	if body := resp.Body(); len(body) > 0 {
		_ = json.Unmarshal(body, pgErr)
	}
	if pgErr.Message == "" {
		pgErr.Message = fmt.Sprintf("unexpected status %d", resp.StatusCode())
	}
	return pgErr
}

// parseContentRangeTotal reads N from "*/N" or "a-b/N".
func parseContentRangeTotal(header string) (int64, error) {
	idx := strings.LastIndex(header, "/")
	if idx < 0 || idx == len(header)-1 {
		return 0, fmt.Errorf("malformed content-range %q", header)
	}

	total := strings.TrimSpace(header[idx+1:])
	if total == "*" {
		return 0, fmt.Errorf("content-range %q has no exact count", header)
	}

	n, err := strconv.ParseInt(total, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("malformed content-range %q", header)
	}

	return n, nil
}
