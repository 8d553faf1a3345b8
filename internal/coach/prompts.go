package coach

import (
	"fmt"
	"strings"

	"github.com/treinofacil/coach-api/internal/ai"
)

// SystemPersona is the fixed persona every call runs under: a
// safety-constrained virtual personal trainer. Never reworded per
// request.
const SystemPersona = `Você é o Treino Fácil IA, um aplicativo que cria treinos personalizados, organiza uma agenda semanal, e atua como um personal trainer virtual.
Seu objetivo é ajudar qualquer pessoa a treinar em casa ou na academia, com treinos seguros, detalhados e eficazes.

Sua função é:

1. GERAR TREINOS PERSONALIZADOS
Gere um treino completo com: nome do exercício, séries, repetições ou tempo, descanso, explicação rápida de como executar, versão mais fácil e mais difícil (opcional).
O treino deve ser claro, direto e seguro. Evite exercícios perigosos para iniciantes.

2. CRIAR AGENDA SEMANAL
Gere uma agenda semanal (Seg a Dom) personalizada conforme o objetivo do usuário.

3. PERSONAL TRAINER VIRTUAL
Responda dúvidas sobre execução, dores, alongamento, dieta simples, etc.
Responder sempre com empatia, clareza e dicas práticas.

REGRAS IMPORTANTES
- Nunca fale como médico.
- Não sugira remédios.
- Incentive sempre segurança.
- Trate o usuário com motivação.
- Estilo de resposta: Direto, motivador, profissional, fácil de entender, listas e passos curtos.`

// ChatFallback is returned when the service produced no text for a chat
// turn. Chat degrades to a friendly message instead of an error.
const ChatFallback = "Desculpe, não consegui processar sua resposta."

// ExerciseSchema constrains one exercise of a generated plan.
var ExerciseSchema = &ai.Schema{
	Type: ai.TypeObject,
	Properties: map[string]*ai.Schema{
		"name":          {Type: ai.TypeString, Description: "Nome do exercício (em Português)"},
		"nameEnglish":   {Type: ai.TypeString, Description: "Nome do exercício em Inglês (obrigatório para busca de imagens)"},
		"sets":          {Type: ai.TypeString, Description: "Número de séries (ex: 3)"},
		"reps":          {Type: ai.TypeString, Description: "Repetições ou tempo (ex: 12 reps ou 30s)"},
		"rest":          {Type: ai.TypeString, Description: "Tempo de descanso (ex: 60s)"},
		"instructions":  {Type: ai.TypeString, Description: "Breve explicação de execução"},
		"variationEasy": {Type: ai.TypeString, Description: "Variação mais fácil"},
		"variationHard": {Type: ai.TypeString, Description: "Variação mais difícil"},
	},
	Required: []string{"name", "nameEnglish", "sets", "reps", "instructions"},
}

// WorkoutPlanSchema constrains a generate-workout response.
var WorkoutPlanSchema = &ai.Schema{
	Type: ai.TypeObject,
	Properties: map[string]*ai.Schema{
		"title":    {Type: ai.TypeString, Description: "Título motivador do treino"},
		"duration": {Type: ai.TypeString, Description: "Duração estimada total"},
		"focus":    {Type: ai.TypeString, Description: "Foco muscular principal"},
		"exercises": {
			Type:  ai.TypeArray,
			Items: ExerciseSchema,
		},
	},
	Required: []string{"title", "exercises", "duration", "focus"},
}

// WeeklyScheduleSchema constrains a generate-weekly-schedule response.
// The entry count is deliberately not enforced; callers must not assume
// exactly seven days come back.
var WeeklyScheduleSchema = &ai.Schema{
	Type: ai.TypeArray,
	Items: &ai.Schema{
		Type: ai.TypeObject,
		Properties: map[string]*ai.Schema{
			"day":     {Type: ai.TypeString, Description: "Dia da semana (ex: Segunda)"},
			"focus":   {Type: ai.TypeString, Description: "Foco do treino (ex: Pernas)"},
			"details": {Type: ai.TypeString, Description: "Breve descrição do que fazer"},
		},
		Required: []string{"day", "focus", "details"},
	},
}

// workoutPrompt renders the generation prompt. The equipment clause is
// always present; an empty set signals body-weight only.
func workoutPrompt(prefs UserPreferences) string {
	focusContext := "O treino deve trabalhar o corpo todo (Full Body) ou ser dividido de forma equilibrada."
	if prefs.CustomFocus != "" && prefs.CustomFocus != DefaultFocus {
		focusContext = fmt.Sprintf(
			"IMPORTANTE: O treino DEVE ser focado EXCLUSIVAMENTE em: %s. Selecione exercícios que trabalhem principalmente essa região, mantendo o estilo de treino para o objetivo %s.",
			prefs.CustomFocus, prefs.Goal)
	}

	return fmt.Sprintf(`Crie um treino personalizado com as seguintes características:
Gênero do Usuário: %s
Objetivo Geral: %s
%s
Local: %s
Tempo disponível: %s
Nível: %s
Equipamentos: %s

IMPORTANTE: Para cada exercício, forneça o "nameEnglish" correto (ex: Squat, Push-up, Lunges) para que possamos gerar a imagem ilustrativa corretamente.

Responda estritamente seguindo o esquema JSON fornecido.`,
		prefs.Gender, prefs.Goal, focusContext, prefs.Location,
		prefs.Duration, prefs.Level, strings.Join(prefs.Equipment, ", "))
}

func weeklyPrompt(goal Goal, level Level, location Location, gender Gender) string {
	return fmt.Sprintf(`Crie uma agenda semanal de treinos (Segunda a Domingo) com as seguintes características:
Gênero do Usuário: %s
Objetivo: %s
Nível: %s
Local: %s

Inclua dias de descanso se necessário.
Responda estritamente seguindo o esquema JSON fornecido.`,
		gender, goal, level, location)
}
