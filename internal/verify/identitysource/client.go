// Package identitysource calls the upstream registry of record that holds the
// authoritative identity data keyed by citizen-link code.
package identitysource

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"idgate/internal/verify/models"
	"idgate/pkg/errcode"
	"idgate/pkg/platform/sentinel"
)

// Source fetches the authoritative identity record for a subject.
type Source interface {
	Fetch(ctx context.Context, ci string) (*models.IdentityRecord, error)
}

// Client talks to the upstream registry over HTTPS.
type Client struct {
	http *resty.Client
}

// New builds a registry client. The timeout bounds the whole exchange; the
// upstream is on the critical path of every registration and check.
func New(baseURL string, timeout time.Duration) *Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond).
		SetHeader("Content-Type", "application/json")
	return &Client{http: c}
}

type fetchRequest struct {
	CI string `json:"ci"`
}

type fetchResponse struct {
	ResultCode string `json:"resultCode"`
	Data       struct {
		SubjectID       string `json:"subjectId"`
		BirthDay        string `json:"birthDay"`
		SubCode         string `json:"subCode"`
		UserName        string `json:"userName"`
		IssuedYmd       string `json:"issuedYmd"`
		Address         string `json:"address"`
		DetailAddress   string `json:"detailAddress"`
		Photo           string `json:"photo"`
		InstitutionName string `json:"issuedInstNm"`
		Employment      string `json:"employment"`
		Credential      string `json:"credential"`
	} `json:"retData"`
}

// Fetch retrieves the identity record for the given citizen-link code. An
// unknown subject maps to sentinel.ErrNotFound; transport or upstream trouble
// maps to the link-request failure code.
func (c *Client) Fetch(ctx context.Context, ci string) (*models.IdentityRecord, error) {
	var out fetchResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(fetchRequest{CI: ci}).
		SetResult(&out).
		Post("/v1/identity/lookup")
	if err != nil {
		return nil, errcode.Wrap(errcode.CodeLinkRequestFailed, err)
	}
	if resp.IsError() {
		return nil, errcode.Wrap(errcode.CodeLinkRequestFailed,
			fmt.Errorf("registry returned status %d", resp.StatusCode()))
	}
	if out.ResultCode != models.ResultCodeSuccess {
		if out.ResultCode == string(errcode.CodeNotRegistered) {
			return nil, sentinel.ErrNotFound
		}
		return nil, errcode.Wrap(errcode.CodeLinkRequestFailed,
			fmt.Errorf("registry returned result %s", out.ResultCode))
	}

	var photo []byte
	if out.Data.Photo != "" {
		photo, err = base64.StdEncoding.DecodeString(out.Data.Photo)
		if err != nil {
			return nil, errcode.Wrap(errcode.CodeLinkRequestFailed, err)
		}
	}

	return &models.IdentityRecord{
		SubjectID:       out.Data.SubjectID,
		CI:              ci,
		BirthDay:        out.Data.BirthDay,
		SubCode:         out.Data.SubCode,
		UserName:        out.Data.UserName,
		IssuedYmd:       out.Data.IssuedYmd,
		Address1:        out.Data.Address,
		Address2:        out.Data.DetailAddress,
		Photo:           photo,
		InstitutionName: out.Data.InstitutionName,
		Employment:      models.EmploymentStatus(out.Data.Employment),
		Credential:      models.CredentialStatus(out.Data.Credential),
	}, nil
}
