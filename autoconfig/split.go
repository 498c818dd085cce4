package autoconfig

import (
	"strings"
)

// QueueNamesSeparator separates queue names in ListenerBinding.QueueNamesRaw.
const QueueNamesSeparator = ","

// SplitQueueNames splits raw on QueueNamesSeparator. Segments are not trimmed and empty
// segments between separators are kept, so "a,,b" gives ["a", "", "b"].
// Trailing empty segments are removed: "a,b," gives ["a", "b"] and ",," gives no names.
func SplitQueueNames(raw string) []string {
	names := strings.Split(raw, QueueNamesSeparator)

	end := len(names)
	for end > 0 && names[end-1] == "" {
		end--
	}

	return names[:end]
}
