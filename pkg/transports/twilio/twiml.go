package twilio

import (
	"strconv"
	"strings"

	"github.com/harunnryd/tavolo/pkg/call"
)

const transferAnnounce = "Transferring you to our staff now."

// renderEffect turns an orchestrator effect into the TwiML answer for one
// webhook. Speaking effects nest inside a Gather so the caller can barge in.
func (t *Transport) renderEffect(eff call.Effect) string {
	var b strings.Builder
	b.WriteString(`<Response>`)
	switch eff.Kind {
	case call.EffectGreeting, call.EffectSpeakAndListen, call.EffectClarify:
		b.WriteString(t.gatherOpen())
		b.WriteString(t.speak(eff))
		b.WriteString(`</Gather>`)
	case call.EffectEscalate:
		b.WriteString(t.speak(eff))
		b.WriteString(t.say(transferAnnounce))
		b.WriteString(t.dial(eff.TransferTo))
	case call.EffectHangup:
		b.WriteString(t.speak(eff))
		b.WriteString(`<Hangup/>`)
	case call.EffectNone:
	}
	b.WriteString(`</Response>`)
	return b.String()
}

func (t *Transport) gatherOpen() string {
	var b strings.Builder
	b.WriteString(`<Gather input="speech" action="`)
	b.WriteString(t.cfg.SpeechPath)
	b.WriteString(`" method="POST" timeout="`)
	b.WriteString(strconv.Itoa(t.cfg.GatherTimeoutS))
	b.WriteString(`" speechTimeout="`)
	b.WriteString(strconv.Itoa(t.cfg.SpeechTimeoutS))
	b.WriteString(`" profanityFilter="`)
	b.WriteString(strconv.FormatBool(t.cfg.profanityFilter()))
	b.WriteString(`">`)
	return b.String()
}

// speak renders Play when synthesized audio exists, Say otherwise.
func (t *Transport) speak(eff call.Effect) string {
	if eff.Text == "" && eff.AudioURL == "" {
		return ""
	}
	if eff.AudioURL != "" {
		return `<Play>` + xmlEscape(eff.AudioURL) + `</Play>`
	}
	return t.say(eff.Text)
}

func (t *Transport) say(text string) string {
	return `<Say voice="` + xmlEscape(t.cfg.SayVoice) + `">` + xmlEscape(text) + `</Say>`
}

func (t *Transport) dial(number string) string {
	if number == "" {
		return `<Hangup/>`
	}
	var b strings.Builder
	b.WriteString(`<Dial`)
	if t.cfg.TwilioPhone != "" {
		b.WriteString(` callerId="` + xmlEscape(t.cfg.TwilioPhone) + `"`)
	}
	b.WriteString(`><Number>`)
	b.WriteString(xmlEscape(number))
	b.WriteString(`</Number></Dial>`)
	return b.String()
}

func xmlEscape(in string) string {
	replacer := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		"\"", "&quot;",
		"'", "&apos;",
	)
	return replacer.Replace(in)
}
