package messaging

import (
	"fmt"
	"strings"
)

// Topic layout: biblioteca/carrinho/<session>/<channel>
const (
	TopicRoot = "biblioteca/carrinho"

	ChannelTagRead  = "rfid"
	ChannelBookInfo = "livro"
	ChannelError    = "erro"
	ChannelControl  = "controle"
)

// TagReadPattern matches tag reads for every session
var TagReadPattern = TopicRoot + "/+/" + ChannelTagRead

// SessionTopic builds the topic for a session channel
func SessionTopic(sessionID, channel string) string {
	return fmt.Sprintf("%s/%s/%s", TopicRoot, sessionID, channel)
}

// ParseSessionTopic extracts the session id and channel from a concrete topic
func ParseSessionTopic(topic string) (sessionID, channel string, ok bool) {
	rest, found := strings.CutPrefix(topic, TopicRoot+"/")
	if !found {
		return "", "", false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// MatchTopic reports whether topic satisfies an MQTT-style pattern
func MatchTopic(pattern, topic string) bool {
	p := strings.Split(pattern, "/")
	t := strings.Split(topic, "/")
	for i, seg := range p {
		if seg == "#" {
			return i == len(p)-1
		}
		if i >= len(t) {
			return false
		}
		if seg != "+" && seg != t[i] {
			return false
		}
	}
	return len(p) == len(t)
}
