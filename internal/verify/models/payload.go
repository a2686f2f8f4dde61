package models

// IdentityPayload is the response-side projection of an identity record. The
// codec encrypts its personal fields with the bound app key; redemption
// responses additionally wrap AppKey and DeviceInfo with the caller's
// per-request key.
type IdentityPayload struct {
	BirthDay        string `json:"birthDay"`
	SubCode         string `json:"subCode"`
	UserName        string `json:"userName"`
	IssuedYmd       string `json:"issuedYmd"`
	Address         string `json:"address"`
	DetailAddress   string `json:"detailAddress"`
	Photo           string `json:"photo,omitempty"`
	InstitutionName string `json:"issuedInstNm"`

	AppKey     string `json:"appKey,omitempty"`
	DeviceInfo string `json:"deviceInfo,omitempty"`
}

// PayloadFromRecord builds the response projection of a stored record.
func PayloadFromRecord(rec IdentityRecord) IdentityPayload {
	return IdentityPayload{
		BirthDay:        rec.BirthDay,
		SubCode:         rec.SubCode,
		UserName:        rec.UserName,
		IssuedYmd:       rec.IssuedYmd,
		Address:         rec.Address1,
		DetailAddress:   rec.Address2,
		Photo:           string(rec.Photo),
		InstitutionName: rec.InstitutionName,
		AppKey:          rec.AppKey,
		DeviceInfo:      rec.DeviceInfo,
	}
}
