package models

// QRIssueData carries an issued QR token image, base64 PNG.
type QRIssueData struct {
	QRCode string `json:"qrCd"`
}

// CheckData is the identity-check response: the re-encrypted identity
// payload plus a freshly issued QR token.
type CheckData struct {
	IdentityPayload
	QRCode string `json:"qrCd"`
}

// HistoryItem is one redemption attempt as presented to the caller.
type HistoryItem struct {
	SubjectID     string `json:"subjectId"`
	ApplicationID string `json:"appId"`
	Status        string `json:"status"`
	UsedAt        string `json:"useDt"`
}

// HistoryData is one page of redemption history. HasNext is the wire-level
// Y/N flag.
type HistoryData struct {
	Items   []HistoryItem `json:"histories"`
	HasNext string        `json:"hasNext"`
	Total   int           `json:"totCnt"`
}
