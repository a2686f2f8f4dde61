package models

// Envelope is the wire-level request shape shared by every operation. Fields
// are populated per operation; the crypto codec decrypts the transport and
// identity layers in place. Ephemeral, lives for one request only.
type Envelope struct {
	AgencyToken      string `json:"agencyToken"`
	ApplicationToken string `json:"applicationToken"`

	// EncKey is the per-request symmetric key, RSA-wrapped by the caller with
	// the context's public key.
	EncKey string `json:"encKey,omitempty"`

	// Transport layer, encrypted with encKey. Telecom travels in plaintext.
	CI         string `json:"ci,omitempty"`
	AppKey     string `json:"appKey,omitempty"`
	MobileNo   string `json:"mobileNo,omitempty"`
	DeviceInfo string `json:"deviceInfo,omitempty"`
	Telecom    string `json:"telecom,omitempty"`

	// Identity layer, encrypted with the recovered appKey.
	BirthDay  string `json:"birthDay,omitempty"`
	SubCode   string `json:"subCode,omitempty"`
	UserName  string `json:"userName,omitempty"`
	IssuedYmd string `json:"issuedYmd,omitempty"`

	// QR redemption.
	QRCode string `json:"qrCd,omitempty"`

	// History query surface.
	CurListIndex int    `json:"curListIndex,omitempty"`
	ReqListCnt   int    `json:"reqListCnt,omitempty"`
	Order        string `json:"order,omitempty"`
	Status       string `json:"status,omitempty"`
	Range        string `json:"range,omitempty"`
	StartYmd     string `json:"stDt,omitempty"`
	EndYmd       string `json:"endDt,omitempty"`
}

// Response is the uniform envelope returned by every operation. The HTTP
// status is always 200; failures travel in ResultCode.
type Response struct {
	ResultCode    string `json:"resultCode"`
	ResultMessage string `json:"resultMessage"`
	Data          any    `json:"retData,omitempty"`
}

// ResultCodeSuccess is the single success code of the closed taxonomy.
const (
	ResultCodeSuccess    = "S00000"
	ResultMessageSuccess = "success"
)

// Per-operation projections. Each operation works on an explicit typed view
// of the envelope, mapped field by field, so an operation can never read a
// field it did not declare.

// RegisterRequest carries the decrypted fields of a registration.
type RegisterRequest struct {
	CI         string
	AppKey     string
	MobileNo   string
	DeviceInfo string
	Telecom    string
	BirthDay   string
	SubCode    string
	UserName   string
	IssuedYmd  string
}

// CheckRequest carries the decrypted fields of an identity check.
type CheckRequest struct {
	CI         string
	AppKey     string
	MobileNo   string
	DeviceInfo string
	Telecom    string
}

// TerminateRequest carries the decrypted fields of a termination.
type TerminateRequest struct {
	CI         string
	AppKey     string
	MobileNo   string
	DeviceInfo string
	Telecom    string
}

// QRIssueRequest carries the decrypted fields of a QR issuance.
type QRIssueRequest struct {
	CI         string
	AppKey     string
	MobileNo   string
	DeviceInfo string
	Telecom    string
}

// QRRedeemRequest carries the fields of a QR redemption. EncKey stays in its
// wrapped form here; the codec needs it to re-encrypt the response.
type QRRedeemRequest struct {
	EncKey string
	QRCode string
}

// RegisterView projects an envelope onto the registration shape.
func (e Envelope) RegisterView() RegisterRequest {
	return RegisterRequest{
		CI:         e.CI,
		AppKey:     e.AppKey,
		MobileNo:   e.MobileNo,
		DeviceInfo: e.DeviceInfo,
		Telecom:    e.Telecom,
		BirthDay:   e.BirthDay,
		SubCode:    e.SubCode,
		UserName:   e.UserName,
		IssuedYmd:  e.IssuedYmd,
	}
}

// CheckView projects an envelope onto the check shape.
func (e Envelope) CheckView() CheckRequest {
	return CheckRequest{
		CI:         e.CI,
		AppKey:     e.AppKey,
		MobileNo:   e.MobileNo,
		DeviceInfo: e.DeviceInfo,
		Telecom:    e.Telecom,
	}
}

// TerminateView projects an envelope onto the termination shape.
func (e Envelope) TerminateView() TerminateRequest {
	return TerminateRequest{
		CI:         e.CI,
		AppKey:     e.AppKey,
		MobileNo:   e.MobileNo,
		DeviceInfo: e.DeviceInfo,
		Telecom:    e.Telecom,
	}
}

// QRIssueView projects an envelope onto the QR issuance shape.
func (e Envelope) QRIssueView() QRIssueRequest {
	return QRIssueRequest{
		CI:         e.CI,
		AppKey:     e.AppKey,
		MobileNo:   e.MobileNo,
		DeviceInfo: e.DeviceInfo,
		Telecom:    e.Telecom,
	}
}

// QRRedeemView projects an envelope onto the redemption shape.
func (e Envelope) QRRedeemView() QRRedeemRequest {
	return QRRedeemRequest{
		EncKey: e.EncKey,
		QRCode: e.QRCode,
	}
}

// HistoryView projects an envelope onto the history query, binding the
// resolved context identifiers.
func (e Envelope) HistoryView(institutionID, applicationID string) HistoryQuery {
	return HistoryQuery{
		InstitutionID: institutionID,
		ApplicationID: applicationID,
		Page:          e.CurListIndex,
		Limit:         e.ReqListCnt,
		Order:         e.Order,
		Status:        e.Status,
		Range:         e.Range,
		StartYmd:      e.StartYmd,
		EndYmd:        e.EndYmd,
	}
}
