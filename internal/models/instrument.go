package models

import "strings"

// Instrument is one row of the listed-company master.
type Instrument struct {
	Code           string `json:"code" badgerhold:"key"`
	CompanyName    string `json:"companyName"`
	CompanyNameEng string `json:"companyNameEnglish,omitempty"`
	MarketCode     string `json:"marketCode,omitempty"`
	MarketName     string `json:"marketName,omitempty"`
	SectorCode     string `json:"sectorCode,omitempty"`
	SectorName     string `json:"sectorName,omitempty"`
	Date           string `json:"date,omitempty"`
}

// NormalizeCode canonicalizes a user-supplied instrument code. Four-digit
// codes gain a trailing "0" to match the five-digit exchange form; codes
// already five digits pass through.
func NormalizeCode(code string) string {
	code = strings.TrimSpace(code)
	if len(code) == 4 {
		return code + "0"
	}
	return code
}

// ShortCode returns the familiar four-digit form when the code is the
// standard five-digit shape ending in zero.
func ShortCode(code string) string {
	if len(code) == 5 && strings.HasSuffix(code, "0") {
		return code[:4]
	}
	return code
}
