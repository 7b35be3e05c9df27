// Package directory talks to the API-backed identity directory (a Microsoft
// Graph style REST surface) over an OAuth2 client-credentials session.
package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/campuskit/provisioner/internal/emailgen"
)

type ClientConfig struct {
	BaseURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
	Timeout      time.Duration
}

// Client is a thin authenticated JSON client for the directory API. The
// oauth2 transport refreshes the app token as needed; one client serves a
// whole batch.
type Client struct {
	baseURL string
	http    *http.Client

	mu         sync.Mutex
	groupCache map[string]string
}

func NewClient(ctx context.Context, cfg ClientConfig) *Client {
	creds := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		Scopes:       cfg.Scopes,
	}

	httpClient := creds.Client(ctx)
	if cfg.Timeout > 0 {
		httpClient.Timeout = cfg.Timeout
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		http:       httpClient,
		groupCache: make(map[string]string),
	}
}

// apiError preserves the provider's diagnostic text verbatim for audit.
type apiError struct {
	Status int
	Body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("directory api status %d: %s", e.Status, e.Body)
}

// Account is the subset of a directory user object this system reads.
type Account struct {
	ID                string `json:"id"`
	DisplayName       string `json:"displayName"`
	Mail              string `json:"mail"`
	UserPrincipalName string `json:"userPrincipalName"`
	EmployeeID        string `json:"employeeId"`
}

type listResponse struct {
	Value    []Account `json:"value"`
	NextLink string    `json:"@odata.nextLink"`
}

// FindByEmployeeID looks an account up by its identification number. A nil
// account with a nil error means the identification is unknown to the
// directory; existence here is always explicit, never inferred.
func (c *Client) FindByEmployeeID(ctx context.Context, identification string) (*Account, error) {
	filter := url.QueryEscape(fmt.Sprintf("employeeId eq '%s'", identification))
	var out listResponse
	if err := c.getJSON(ctx, c.baseURL+"/users?$filter="+filter+"&$select=id,displayName,mail,userPrincipalName,employeeId", &out); err != nil {
		return nil, err
	}
	if len(out.Value) == 0 {
		return nil, nil
	}
	return &out.Value[0], nil
}

type passwordProfile struct {
	Password                      string `json:"password"`
	ForceChangePasswordNextSignIn bool   `json:"forceChangePasswordNextSignIn"`
}

type createUserRequest struct {
	AccountEnabled    bool            `json:"accountEnabled"`
	DisplayName       string          `json:"displayName"`
	MailNickname      string          `json:"mailNickname"`
	UserPrincipalName string          `json:"userPrincipalName"`
	Mail              string          `json:"mail"`
	EmployeeID        string          `json:"employeeId"`
	PasswordProfile   passwordProfile `json:"passwordProfile"`
}

// CreateUser provisions a directory account with a temporary credential the
// user must rotate at first sign-in. Returns the new object ID.
func (c *Client) CreateUser(ctx context.Context, displayName, email, identification, password string) (string, error) {
	nickname, _, _ := strings.Cut(email, "@")
	req := createUserRequest{
		AccountEnabled:    true,
		DisplayName:       displayName,
		MailNickname:      nickname,
		UserPrincipalName: email,
		Mail:              email,
		EmployeeID:        identification,
		PasswordProfile: passwordProfile{
			Password:                      password,
			ForceChangePasswordNextSignIn: true,
		},
	}

	var created Account
	if err := c.postJSON(ctx, c.baseURL+"/users", req, http.StatusCreated, &created); err != nil {
		return "", err
	}
	return created.ID, nil
}

// GroupID resolves a group's object ID by display name, caching hits for the
// rest of the batch.
func (c *Client) GroupID(ctx context.Context, name string) (string, error) {
	c.mu.Lock()
	if id, ok := c.groupCache[name]; ok {
		c.mu.Unlock()
		return id, nil
	}
	c.mu.Unlock()

	filter := url.QueryEscape(fmt.Sprintf("displayName eq '%s'", name))
	var out struct {
		Value []struct {
			ID string `json:"id"`
		} `json:"value"`
	}
	if err := c.getJSON(ctx, c.baseURL+"/groups?$filter="+filter, &out); err != nil {
		return "", err
	}
	if len(out.Value) == 0 {
		return "", fmt.Errorf("group %q not found", name)
	}

	c.mu.Lock()
	c.groupCache[name] = out.Value[0].ID
	c.mu.Unlock()
	return out.Value[0].ID, nil
}

// AddGroupMember adds a user to a group. The provider answers 400 with an
// "already exist(s)" body when the membership is present, which counts as
// success here.
func (c *Client) AddGroupMember(ctx context.Context, groupID, userID string) error {
	body := map[string]string{
		"@odata.id": c.baseURL + "/directoryObjects/" + userID,
	}
	err := c.postJSON(ctx, c.baseURL+"/groups/"+groupID+"/members/$ref", body, http.StatusNoContent, nil)
	if err == nil {
		return nil
	}
	var api *apiError
	if errors.As(err, &api) && api.Status == http.StatusBadRequest {
		lower := strings.ToLower(api.Body)
		if strings.Contains(lower, "already exist") || strings.Contains(lower, "already a member") {
			return nil
		}
	}
	return err
}

type mailAddress struct {
	Address string `json:"address"`
}

type mailRecipient struct {
	EmailAddress mailAddress `json:"emailAddress"`
}

type mailBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

type mailMessage struct {
	Subject      string          `json:"subject"`
	Body         mailBody        `json:"body"`
	ToRecipients []mailRecipient `json:"toRecipients"`
}

type sendMailRequest struct {
	Message         mailMessage `json:"message"`
	SaveToSentItems bool        `json:"saveToSentItems"`
}

// SendMail delivers an HTML message from the given sender mailbox.
func (c *Client) SendMail(ctx context.Context, from, to, subject, bodyHTML string) error {
	req := sendMailRequest{
		Message: mailMessage{
			Subject:      subject,
			Body:         mailBody{ContentType: "HTML", Content: bodyHTML},
			ToRecipients: []mailRecipient{{EmailAddress: mailAddress{Address: to}}},
		},
	}
	return c.postJSON(ctx, c.baseURL+"/users/"+url.PathEscape(from)+"/sendMail", req, http.StatusAccepted, nil)
}

// ListDomainUsers pages through every directory user and returns those whose
// address belongs to the institutional domain, for seeding the email
// generator.
func (c *Client) ListDomainUsers(ctx context.Context, domain string) ([]emailgen.DirectoryUser, error) {
	suffix := "@" + strings.ToLower(domain)
	var users []emailgen.DirectoryUser

	next := c.baseURL + "/users?$select=mail,userPrincipalName,displayName&$top=999"
	for next != "" {
		var page listResponse
		if err := c.getJSON(ctx, next, &page); err != nil {
			return nil, err
		}
		for _, acc := range page.Value {
			email := acc.Mail
			if email == "" {
				email = acc.UserPrincipalName
			}
			if email == "" || !strings.HasSuffix(strings.ToLower(email), suffix) {
				continue
			}
			users = append(users, emailgen.DirectoryUser{
				Email:       strings.ToLower(email),
				DisplayName: acc.DisplayName,
			})
		}
		next = page.NextLink
	}

	return users, nil
}

func (c *Client) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	return c.do(req, http.StatusOK, out)
}

func (c *Client) postJSON(ctx context.Context, rawURL string, body any, wantStatus int, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, wantStatus, out)
}

func (c *Client) do(req *http.Request, wantStatus int, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != wantStatus {
		return &apiError{Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, out)
}
