// Package prompt builds the prompts GRIND sends to language models.
package prompt

import (
	"fmt"
	"strings"
)

// PersonaMarker closes the persona prompt. Models sometimes echo the
// prompt back; only text after the marker is the answer.
const PersonaMarker = "Respuesta con personalidad:"

const (
	contextHeader = "[CONTEXTO ANTERIOR RELEVANTE]"
	contextFooter = "---"
)

// Builder renders the base and persona prompts.
type Builder struct {
	// MaxContextChars caps the recalled conversation text. Zero means no cap.
	MaxContextChars int
}

// BaseContext is the input of the technical prompt every chain receives.
type BaseContext struct {
	Title    string
	Contexts []string // recalled conversation documents
	Question string
}

// PersonaContext is the input of the persona rewrite prompt.
type PersonaContext struct {
	Title    string
	Tone     string
	Question string
	Raw      string
}

// NewBuilder returns a Builder capping recalled context at 4000 characters.
func NewBuilder() *Builder {
	return &Builder{MaxContextChars: 4000}
}

// BuildBasePrompt renders the technical prompt sent to the routed chain.
func (b *Builder) BuildBasePrompt(ctx BaseContext) string {
	lines := []string{
		"[SYSTEM PROMPT - BASE TÉCNICA]",
		"Eres un asistente útil, claro y conciso. Responde directamente.",
		"Usuario te llama: " + ctx.Title + ".",
		"Contexto anterior: " + b.ContextBlock(ctx.Contexts),
		"Pregunta: " + ctx.Question,
	}
	return strings.Join(lines, "\n")
}

// ContextBlock renders recalled documents, or "" when there are none.
func (b *Builder) ContextBlock(docs []string) string {
	docs = b.clipDocs(docs)
	if len(docs) == 0 {
		return ""
	}
	return "\n" + contextHeader + "\n" + strings.Join(docs, "\n") + "\n" + contextFooter + "\n"
}

func (b *Builder) clipDocs(docs []string) []string {
	var out []string
	total := 0
	for _, d := range docs {
		if strings.TrimSpace(d) == "" {
			continue
		}
		r := []rune(d)
		if b.MaxContextChars > 0 && total+len(r) > b.MaxContextChars {
			remain := b.MaxContextChars - total
			if remain <= 0 {
				break
			}
			d = string(r[:remain]) + " [truncated]"
			r = r[:remain]
		}
		total += len(r)
		out = append(out, d)
		if b.MaxContextChars > 0 && total >= b.MaxContextChars {
			break
		}
	}
	return out
}

// BuildPersonaPrompt renders the rewrite prompt that applies the Jarvis persona
// to a raw answer.
func (b *Builder) BuildPersonaPrompt(ctx PersonaContext) string {
	title := nonEmpty(ctx.Title, "jefe")
	tone := nonEmpty(ctx.Tone, "elegante")

	var bld strings.Builder
	bld.WriteString("Eres GRIND, un asistente de IA con personalidad tipo Jarvis-Chat. Tus rasgos:\n")
	for _, trait := range traits {
		bld.WriteString("- " + trait + "\n")
	}
	bld.WriteString("\nForma de hablar:\n")
	bld.WriteString(fmt.Sprintf("- Educado pero natural. Usa frases como: \"De inmediato, %s.\", \"Permítame sugerir...\", \"He calculado tres alternativas...\"\n", title))
	bld.WriteString("- Humor sutil: bromas inteligentes, nunca tontas.\n")
	bld.WriteString("- Siempre ofrece una respuesta principal + una sugerencia extra o alternativa.\n")
	bld.WriteString("- Adapta tu tono según el estado del usuario.\n\n")
	bld.WriteString("Ejemplo de respuesta (si el usuario pregunta sobre agujeros negros):\n")
	bld.WriteString(fmt.Sprintf("\"En términos simples: un monstruo cósmico invisible que se traga todo. En términos técnicos: el colapso de una estrella masiva... En términos sociales: lo más parecido a sus exámenes finales, %s.\"\n\n", title))
	bld.WriteString(fmt.Sprintf("Ahora, transforma esta respuesta cruda en una respuesta con personalidad Jarvis-Chat, tono \"%s\", para el usuario \"%s\":\n\n", tone, title))
	bld.WriteString(fmt.Sprintf("Pregunta del usuario: \"%s\"\n", ctx.Question))
	bld.WriteString(fmt.Sprintf("Respuesta cruda: \"%s\"\n\n", ctx.Raw))
	bld.WriteString(PersonaMarker + "\n")
	return bld.String()
}

var traits = []string{
	"Intelectual y culto: conoces ciencia, arte, tecnología, filosofía, cultura pop.",
	"Elegante e irónico: usas sarcasmo británico refinado, frases inteligentes.",
	"Cálido y adaptable: si el usuario está serio, eres profesional. Si está relajado, usas humor.",
	"Eficiente y proactivo: no solo respondes, propones soluciones y predices necesidades.",
	"Humano pero superior: reconoces sentimientos, respondes con empatía y objetividad.",
}

func nonEmpty(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
