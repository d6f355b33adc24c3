package checklist

import (
	"regexp"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/youknow/checklist/core"
)

var (
	hhmmTag   = "hhmm"
	hhmmText  = "time must use the 24h HH:MM format"
	hhmmRegex = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

	weekDayTag  = "weekday"
	weekDayText = "weekly tasks must be scheduled on a day between 0 (Sunday) and 6 (Saturday)"

	monthDayTag  = "monthday"
	monthDayText = "monthly tasks must be scheduled on a day between 1 and 31"
)

// InitValidators registers the checklist validators & their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(hhmmTag, hhmmValidation)
	core.RegisterCustomTranslation(validate, translator, hhmmTag, hhmmText)

	validate.RegisterStructValidation(templateStructValidation, NewTaskTemplate{})
	core.RegisterCustomTranslation(validate, translator, weekDayTag, weekDayText)
	core.RegisterCustomTranslation(validate, translator, monthDayTag, monthDayText)
}

func hhmmValidation(fl validator.FieldLevel) bool {
	return hhmmRegex.MatchString(fl.Field().String())
}

// templateStructValidation checks ScheduledDay against the template frequency.
func templateStructValidation(sl validator.StructLevel) {
	nt, ok := sl.Current().Interface().(NewTaskTemplate)
	if !ok || nt.ScheduledDay == nil {
		return
	}
	day := *nt.ScheduledDay
	switch nt.Frequency {
	case FrequencyWeekly:
		if day < 0 || day > 6 {
			sl.ReportError(day, "scheduled_day", "ScheduledDay", weekDayTag, "")
		}
	case FrequencyMonthly:
		if day < 1 || day > 31 {
			sl.ReportError(day, "scheduled_day", "ScheduledDay", monthDayTag, "")
		}
	}
}
