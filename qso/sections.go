package qso

import "strings"

// contestSections holds every section code that is valid for Field Day,
// except "DX". Unknown codes are stored verbatim; the table exists so the
// reporting layer can distinguish real sections from typos.
var contestSections = map[string]string{
	"AB": "Alberta", "AK": "Alaska", "AL": "Alabama", "AR": "Arkansas",
	"AZ": "Arizona", "BC": "British Columbia", "CO": "Colorado",
	"CT": "Connecticut", "DE": "Delaware", "EB": "East Bay",
	"EMA": "Eastern Massachusetts", "ENY": "Eastern New York",
	"EPA": "Eastern Pennsylvania", "EWA": "Eastern Washington",
	"GA": "Georgia", "GTA": "Greater Toronto Area", "IA": "Iowa",
	"ID": "Idaho", "IL": "Illinois", "IN": "Indiana", "KS": "Kansas",
	"KY": "Kentucky", "LA": "Louisiana", "LAX": "Los Angeles",
	"MB": "Manitoba", "MDC": "Maryland - DC", "ME": "Maine",
	"MI": "Michigan", "MN": "Minnesota", "MO": "Missouri",
	"MS": "Mississippi", "MT": "Montana", "NB": "New Brunswick",
	"NC": "North Carolina", "ND": "North Dakota", "NE": "Nebraska",
	"NFL": "Northern Florida", "NH": "New Hampshire",
	"NLI": "New York City - Long Island", "NL": "Newfoundland/Labrador",
	"NM": "New Mexico", "NNJ": "Northern New Jersey",
	"NNY": "Northern New York", "NS": "Nova Scotia",
	"NT": "Northern Territories", "NTX": "North Texas", "NV": "Nevada",
	"OH": "Ohio", "OK": "Oklahoma", "ONE": "Ontario East",
	"ONN": "Ontario North", "ONS": "Ontario South", "ORG": "Orange",
	"OR": "Oregon", "PAC": "Pacific", "PE": "Prince Edward Island",
	"PR": "Puerto Rico", "QC": "Quebec", "RI": "Rhode Island",
	"SB": "Santa Barbara", "SC": "South Carolina",
	"SCV": "Santa Clara Valley", "SDG": "San Diego", "SD": "South Dakota",
	"SFL": "Southern Florida", "SF": "San Francisco",
	"SJV": "San Joaquin Valley", "SK": "Saskatchewan",
	"SNJ": "Southern New Jersey", "STX": "South Texas",
	"SV": "Sacramento Valley", "TN": "Tennessee", "UT": "Utah",
	"VA": "Virginia", "VI": "Virgin Islands", "VT": "Vermont",
	"WCF": "West Central Florida", "WI": "Wisconsin",
	"WMA": "Western Massachusetts", "WNY": "Western New York",
	"WPA": "Western Pennsylvania", "WTX": "West Texas",
	"WV": "West Virginia", "WWA": "Western Washington", "WY": "Wyoming",
}

// SectionName returns the full name for a section code and whether the code
// is a known Field Day section.
func SectionName(code string) (string, bool) {
	name, ok := contestSections[strings.ToUpper(strings.TrimSpace(code))]
	return name, ok
}
