package verify

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/jl-grey-man/smbintel"
)

// MaxQuoteLen bounds the quoted span an interpreter may return, in runes.
const MaxQuoteLen = 2000

// rawClaim is the interpreter's output shape for one signal.
type rawClaim struct {
	SignalType string       `json:"signal_type" validate:"required,oneof=job_posting social_post news_mention forum_post company_data"`
	Person     *rawPerson   `json:"person"`
	Company    *rawCompany  `json:"company"`
	Content    rawClaimBody `json:"content" validate:"required"`
}

type rawPerson struct {
	Name    string `json:"name" validate:"max=200"`
	Title   string `json:"title" validate:"max=200"`
	Company string `json:"company" validate:"max=200"`
}

type rawCompany struct {
	Name          string `json:"name" validate:"max=200"`
	Industry      string `json:"industry"`
	EmployeeCount *int   `json:"employee_count" validate:"omitempty,min=0"`
}

type rawClaimBody struct {
	OriginalQuote    string   `json:"original_quote" validate:"required,notblank,maxrunes"`
	TopicTags        []string `json:"topic_tags"`
	ExpressedProblem string   `json:"expressed_problem"`
	ExpressedNeed    string   `json:"expressed_need"`
	AIAwareness      string   `json:"ai_awareness"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = v.RegisterValidation("maxrunes", func(fl validator.FieldLevel) bool {
		return utf8.RuneCountInString(fl.Field().String()) <= MaxQuoteLen
	})
	return v
}

// DecodeClaim validates one raw interpreter signal and converts it into a
// candidate claim for the record with the given fingerprint. Unknown
// fields, missing required fields and wrong types all return EINVALID.
// Nothing is coerced.
func DecodeClaim(fingerprint string, raw json.RawMessage) (*smbintel.CandidateClaim, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var rc rawClaim
	if err := dec.Decode(&rc); err != nil {
		return nil, smbintel.Errorf(smbintel.EINVALID, "malformed claim: %v", err)
	}
	if dec.More() {
		return nil, smbintel.Errorf(smbintel.EINVALID, "malformed claim: trailing data")
	}

	if err := validate.Struct(&rc); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return nil, smbintel.Errorf(smbintel.EINVALID, "invalid claim field %s: failed %q", fe.Namespace(), fe.Tag())
		}
		return nil, smbintel.Errorf(smbintel.EINVALID, "invalid claim: %v", err)
	}

	claim := &smbintel.CandidateClaim{
		Fingerprint: fingerprint,
		SignalType:  smbintel.SignalType(rc.SignalType),
		Quote:       strings.TrimSpace(rc.Content.OriginalQuote),
		Problem:     rc.Content.ExpressedProblem,
		Need:        rc.Content.ExpressedNeed,
	}
	if rc.Person != nil {
		claim.PersonName = strings.TrimSpace(rc.Person.Name)
		claim.PersonTitle = strings.TrimSpace(rc.Person.Title)
		claim.PersonCompany = strings.TrimSpace(rc.Person.Company)
	}
	if rc.Company != nil {
		claim.CompanyName = strings.TrimSpace(rc.Company.Name)
	}

	if err := claim.Validate(); err != nil {
		return nil, err
	}
	return claim, nil
}
