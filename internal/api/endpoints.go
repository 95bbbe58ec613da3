// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"net/url"

	"github.com/jeranaias/thicode-tui/internal/model"
)

// Backend paths. All end in a slash; Django redirects otherwise.
const (
	PathCSRF = "/api/csrf/"

	PathLogin         = "/api/accounts/api/login/"
	PathRegister      = "/api/accounts/api/register/"
	PathLogout        = "/api/accounts/api/logout/"
	PathResetPassword = "/api/accounts/api/reset-password/"
	PathResetConfirm  = "/api/accounts/reset-password/confirm/"
	PathCurrentUser   = "/api/accounts/current-user/"
	PathSettings      = "/api/accounts/settings/"

	PathConversations = "/api/chat/conversations/"
)

// PathVerifyResetToken returns the token check path.
func PathVerifyResetToken(token string) string {
	return "/api/accounts/verify-reset-token/" + url.PathEscape(token) + "/"
}

// PathConversation returns the detail path for a conversation.
func PathConversation(id model.ID) string {
	return PathConversations + id.String() + "/"
}

// PathMessages returns the message collection path for a conversation.
func PathMessages(id model.ID) string {
	return PathConversation(id) + "messages/"
}

// PathMessageStatus returns the completion status path for a message.
func PathMessageStatus(conversationID, messageID model.ID) string {
	return PathMessages(conversationID) + messageID.String() + "/status/"
}

// PathArchive returns the archive action path.
func PathArchive(id model.ID) string {
	return PathConversation(id) + "archive/"
}

// PathRestore returns the restore action path.
func PathRestore(id model.ID) string {
	return PathConversation(id) + "restore/"
}

// PathUpdateMetadata returns the metadata merge path.
func PathUpdateMetadata(id model.ID) string {
	return PathConversation(id) + "update_metadata/"
}
