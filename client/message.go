package client

import "fmt"

// FormatBroadcast tags a chat line with the name of the client that sent it.
func FormatBroadcast(sender, content string) string {
	return sender + ": " + content
}

func FormatRejection(username string) string {
	return fmt.Sprintf("Username %q is already taken! Please choose a different name.", username)
}
