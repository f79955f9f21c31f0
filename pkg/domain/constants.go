package domain

// Answer keys used by the default flow and by the payload projection.
const (
	KeyLanguage    = "language"
	KeyFullName    = "fullName"
	KeyGender      = "gender"
	KeyAge         = "age"
	KeyConditions  = "conditions"
	KeyAllergies   = "allergies"
	KeyMedications = "medications"
	KeyService     = "service"
	KeyNLPSymptoms = "nlpSymptoms"
	KeySymptoms    = "symptoms"
	KeySkinImage   = "skinImage"
	KeySkinResult  = "skinResult"
	KeySeverity    = "severity"
	KeyFeeling     = "feeling"
	KeyAddMore     = "addMore"
	KeyClosing     = "closing"
)

// Fixed blob store keys.
const (
	StoreKeyToken   = "token"
	StoreKeyUser    = "user"
	StoreKeyProfile = "profile"
	StoreKeyHistory = "history"

	// StorePrefixSession prefixes persisted sessions ("session:<id>").
	StorePrefixSession = "session:"
	// StorePrefixBlob prefixes uploaded binaries ("blob:<sha256>").
	StorePrefixBlob = "blob:"
)

// DefaultHistoryCap is the number of submission records retained.
const DefaultHistoryCap = 300
