package models

import (
	"fmt"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const (
	msgRequired      = "이 필드는 필수 항목입니다."
	msgInvalidChoice = "유효하지 않은 선택입니다."
)

var (
	required  = validation.Required.Error(msgRequired)
	phoneExpr = regexp.MustCompile(`^[\d\-\s\(\)]+$`)
)

func maxLength(n int) validation.Rule {
	return validation.RuneLength(0, n).Error(fmt.Sprintf("이 필드의 글자 수가 %d 이하인지 확인하십시오.", n))
}

func oneOf(values ...string) validation.Rule {
	choices := make([]any, len(values))
	for i, v := range values {
		choices[i] = v
	}
	return validation.In(choices...).Error(msgInvalidChoice)
}

// present fails for values reporting IsZero, such as Date and TimeOfDay.
var present = validation.By(func(value any) error {
	if z, ok := value.(interface{ IsZero() bool }); ok && z.IsZero() {
		return validation.NewError("validation_required", msgRequired)
	}
	return nil
})

// participants bounds a head count to 1..100. A nil *int is accepted;
// ozzo's Min skips zero values, so the bounds are checked by hand.
var participants = validation.By(func(value any) error {
	var n int
	switch v := value.(type) {
	case int:
		n = v
	case *int:
		if v == nil {
			return nil
		}
		n = *v
	default:
		return nil
	}
	switch {
	case n < 1:
		return validation.NewError("validation_min_participants", "참여 인원은 1명 이상이어야 합니다.")
	case n > 100:
		return validation.NewError("validation_max_participants", "참여 인원은 100명을 초과할 수 없습니다.")
	}
	return nil
})

func phone() []validation.Rule {
	return []validation.Rule{
		required,
		maxLength(20),
		validation.Match(phoneExpr).Error("올바른 연락처 형식이 아닙니다."),
	}
}
