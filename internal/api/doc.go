// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api provides the HTTP client for the ThiCode chat backend.
//
// # Key Types
//
//   - Client: cookie-carrying JSON client with CSRF handling and rate limiting
//   - APIError: non-2xx answer with the backend's message
//   - TransportError: the request never produced a readable response
//
// # Usage
//
//	c, err := api.NewClient("http://localhost:8000")
//	if err != nil {
//	    return err
//	}
//	_, _ = c.FetchCSRF(ctx)
//	user, err := c.Login(ctx, api.Credentials{Username: u, Password: p})
//	if err != nil {
//	    fmt.Println(api.Message(err))
//	}
package api
