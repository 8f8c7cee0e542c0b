package runconfig

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationError 검증 실패 (프로그램 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Warning 권장 위반 (경고만)
type Warning struct {
	Code    string
	Message string
}

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())

	// 에러 필드명을 YAML 키로 표시 (API 요청은 JSON 키)
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"yaml", "json"} {
			name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
			if name != "" && name != "-" {
				return name
			}
		}
		return f.Name
	})
}

// Validator exposes the shared validator (API request bodies use it too)
func Validator() *validator.Validate {
	return validate
}

// Validate checks all required constraints
// 실패 시 첫 번째 ValidationError 반환
func Validate(p *Profile) error {
	if err := validate.Struct(p); err != nil {
		return FromValidator(err)
	}

	// === Cross-field ===
	u, ok := p.Universes[p.Search.Universe]
	if !ok {
		return ValidationError{"search.universe", fmt.Sprintf("unknown universe %q", p.Search.Universe)}
	}
	if u.Static() && p.Search.SubsetSize > len(u.Symbols) {
		return ValidationError{"search.subset_size", fmt.Sprintf("%d exceeds universe size %d", p.Search.SubsetSize, len(u.Symbols))}
	}

	from, to := p.Data.Range()
	if !from.IsZero() && !to.IsZero() && !from.Before(to) {
		return ValidationError{"data", "start must be before end"}
	}

	if p.Data.Source == SourceCSV && p.Data.Dir == "" {
		return ValidationError{"data.dir", "required when source is csv"}
	}

	return nil
}

// FromValidator converts validator errors into the first ValidationError
func FromValidator(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}

	fe := verrs[0]
	field := fe.Namespace()
	// 최상위 타입 이름 제거 (Profile.search.wallets → search.wallets)
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}

	msg := fe.Tag()
	if fe.Param() != "" {
		msg = fmt.Sprintf("%s=%s", fe.Tag(), fe.Param())
	}
	return ValidationError{Field: field, Message: "failed " + msg}
}

// Warn checks recommended constraints (non-fatal)
func Warn(p *Profile) []Warning {
	var warnings []Warning
	s := p.Search
	k := float64(s.SubsetSize)

	// 범위 안 표본이 존재할 수 없음 → best-effort 가중치만 생성
	if k*s.MinWeight > 1 || k*s.MaxWeight < 1 {
		warnings = append(warnings, Warning{
			Code:    "INFEASIBLE_BOUNDS",
			Message: fmt.Sprintf("subset_size=%d with [%g, %g] cannot sum to 1", s.SubsetSize, s.MinWeight, s.MaxWeight),
		})
	}

	if u, ok := p.Universes[s.Universe]; ok && u.Static() {
		if c := combinations(len(u.Symbols), s.SubsetSize); c*float64(s.Wallets) > 1e9 {
			warnings = append(warnings, Warning{
				Code:    "HUGE_SEARCH_SPACE",
				Message: fmt.Sprintf("about %.3g tasks", c*float64(s.Wallets)),
			})
		}
	}

	if s.Seed == 0 {
		warnings = append(warnings, Warning{
			Code:    "UNSEEDED",
			Message: "seed=0: 시간 기반 시드, 결과 재현 불가",
		})
	}

	return warnings
}

// combinations approximates C(n, k) in float64 for the warning above
func combinations(n, k int) float64 {
	if k < 0 || k > n {
		return 0
	}
	c := 1.0
	for i := 1; i <= k; i++ {
		c = c * float64(n-k+i) / float64(i)
	}
	return c
}
