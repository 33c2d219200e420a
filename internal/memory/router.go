package memory

import (
	"regexp"
	"strings"
	"time"
)

// CommandKind identifies a memory command found in a message.
type CommandKind int

const (
	CommandNone CommandKind = iota
	CommandSetTitle
	CommandAskTitle
	CommandReminder
)

// ReminderSlot is the due-time rule picked for a reminder.
type ReminderSlot string

const (
	SlotTomorrow         ReminderSlot = "tomorrow"
	SlotDayAfterTomorrow ReminderSlot = "day_after_tomorrow"
	SlotInOneHour        ReminderSlot = "in_one_hour"
)

// Command is a parsed naming or reminder request.
type Command struct {
	Kind    CommandKind
	Title   string       // CommandSetTitle
	Content string       // CommandReminder: the full message
	DueAt   time.Time    // CommandReminder
	Slot    ReminderSlot // CommandReminder
	Reply   string       // confirmation shown to the user
}

// CommandRouter recognises messages that update memory instead of
// asking a model.
type CommandRouter struct {
	// MorningHour is the hour reminders for "mañana" fire at.
	MorningHour int
}

// NewCommandRouter creates a router with reminders at 09:00.
func NewCommandRouter() *CommandRouter {
	return &CommandRouter{MorningHour: 9}
}

var (
	namingTrigger  = regexp.MustCompile(`(?i)\b(?:ll[aá]mame|quiero que me llames)\b`)
	namingArgument = regexp.MustCompile(`(?i)\b(?:ll[aá]mame|quiero que me llames|dime)\s+([^\s,.;:!?¡¿]+)`)

	reminderTrigger  = regexp.MustCompile(`(?i)\b(?:recu[eé]rdame|recuerda que)\b`)
	dayAfterTomorrow = regexp.MustCompile(`(?i)\bpasado\s+ma[nñ]ana\b`)
	tomorrow         = regexp.MustCompile(`(?i)\bma[nñ]ana\b`)
)

// Match parses input. now is the local wall-clock time used for due times.
func (r *CommandRouter) Match(input string, now time.Time) Command {
	msg := strings.TrimSpace(input)
	if msg == "" {
		return Command{}
	}

	if namingTrigger.MatchString(msg) {
		m := namingArgument.FindStringSubmatch(msg)
		if len(m) < 2 || m[1] == "" {
			return Command{Kind: CommandAskTitle, Reply: "¿Cómo deseas que te llame?"}
		}
		return Command{
			Kind:  CommandSetTitle,
			Title: m[1],
			Reply: "Entendido. A partir de ahora, te llamaré " + m[1] + ".",
		}
	}

	if reminderTrigger.MatchString(msg) {
		cmd := Command{Kind: CommandReminder, Content: msg}
		// The compound phrase contains "mañana", so it is checked first.
		switch {
		case dayAfterTomorrow.MatchString(msg):
			cmd.Slot = SlotDayAfterTomorrow
			cmd.DueAt = r.morningOf(now, 2)
			cmd.Reply = "Entendido. Te lo recordaré pasado mañana a las 9 AM."
		case tomorrow.MatchString(msg):
			cmd.Slot = SlotTomorrow
			cmd.DueAt = r.morningOf(now, 1)
			cmd.Reply = "Perfecto. Te lo recordaré mañana a las 9 AM."
		default:
			cmd.Slot = SlotInOneHour
			cmd.DueAt = now.Add(time.Hour)
			cmd.Reply = "Lo anoté. Te lo recordaré en una hora."
		}
		return cmd
	}

	return Command{}
}

func (r *CommandRouter) morningOf(now time.Time, days int) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d+days, r.MorningHour, 0, 0, 0, now.Location())
}
