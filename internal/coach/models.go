package coach

import (
	"encoding/json"
	"strings"
)

// Goal is the user's overall training objective.
type Goal string

const (
	GoalLoseFat      Goal = "emagrecer"
	GoalBuildMuscle  Goal = "hipertrofia"
	GoalDefine       Goal = "definir"
	GoalConditioning Goal = "condicionamento"
)

// Location is where the user trains.
type Location string

const (
	LocationHome Location = "casa"
	LocationGym  Location = "academia"
)

// Gender selects exercise wording and load suggestions.
type Gender string

const (
	GenderMale   Gender = "masculino"
	GenderFemale Gender = "feminino"
)

// Level is the user's experience level.
type Level string

const (
	LevelBeginner     Level = "iniciante"
	LevelIntermediate Level = "intermediario"
	LevelAdvanced     Level = "avancado"
)

// DefaultFocus is the sentinel meaning "no custom focus": a balanced
// full-body session.
const DefaultFocus = "Corpo Todo (Full Body)"

// AvailableEquipment is the fixed equipment vocabulary consumers pick
// from. Preferences use set semantics; duplicates are harmless.
var AvailableEquipment = []string{
	"Nenhum (Peso do corpo)",
	"Halteres",
	"Elásticos",
	"Kettlebell",
	"Barra Fixa",
	"Banco",
	"Corda de Pular",
	"Máquinas (Academia)",
}

// AvailableFocuses is the fixed custom-focus vocabulary.
var AvailableFocuses = []string{
	DefaultFocus,
	"Superiores (Peito/Costas/Braços)",
	"Inferiores (Pernas Completo)",
	"Peito e Tríceps",
	"Costas e Bíceps",
	"Pernas e Glúteos",
	"Glúteos Isolado",
	"Ombros e Trapézio",
	"Abdômen e Core",
	"Cardio / HIIT",
}

// UserPreferences is everything a workout generation needs.
type UserPreferences struct {
	Goal        Goal     `json:"goal"`
	Location    Location `json:"location"`
	Gender      Gender   `json:"gender"`
	Duration    string   `json:"duration"`
	Level       Level    `json:"level"`
	Equipment   []string `json:"equipment"`
	CustomFocus string   `json:"customFocus,omitempty"`
}

// Exercise is one entry of a generated plan. Sets, reps and rest are
// free text; the model may answer "12 reps" or "30s".
type Exercise struct {
	Name          string `json:"name"`
	NameEnglish   string `json:"nameEnglish"`
	Sets          string `json:"sets"`
	Reps          string `json:"reps"`
	Rest          string `json:"rest,omitempty"`
	Instructions  string `json:"instructions"`
	VariationEasy string `json:"variationEasy,omitempty"`
	VariationHard string `json:"variationHard,omitempty"`
}

// WorkoutPlan is a single generated session. Exercise order is
// execution order.
type WorkoutPlan struct {
	Title     string     `json:"title"`
	Duration  string     `json:"duration"`
	Focus     string     `json:"focus"`
	Exercises []Exercise `json:"exercises"`
}

// WeeklyDay is one day of a weekly schedule.
type WeeklyDay struct {
	Day     string `json:"day"`
	Focus   string `json:"focus"`
	Details string `json:"details"`
}

// IsRest reports whether the day is a rest day. Detection is a
// substring match on the focus text; the schedule schema carries no
// structured rest flag.
// TODO: ask for a boolean rest field in the schema instead of matching
// on wording.
func (d WeeklyDay) IsRest() bool {
	return strings.Contains(strings.ToLower(d.Focus), "descanso")
}

// MarshalJSON emits the derived rest flag alongside the day, so
// consumers never have to re-implement the wording match.
func (d WeeklyDay) MarshalJSON() ([]byte, error) {
	type alias WeeklyDay
	return json.Marshal(struct {
		alias
		IsRest bool `json:"isRest"`
	}{alias(d), d.IsRest()})
}

// Turn is one prior exchange of a chat conversation, supplied fresh by
// the caller on every call.
type Turn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}
