package coordination

import (
	"sort"
	"strconv"
)

func formatUnixScore(unix int64) string {
	return strconv.FormatInt(unix, 10)
}

// sortMessagesDescending sorts in place by timestamp, newest first, per
// spec §4.3 step 4 "sort descending by timestamp".
func sortMessagesDescending(messages []*Message) {
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].Timestamp.After(messages[j].Timestamp)
	})
}
