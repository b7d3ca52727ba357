// Package api handles incoming HTTP requests, request validation and response
// formatting. It adapts HTTP to the generation client and the key-value store:
// text continuation, credential management, and direct access to stored
// entries including export and import of the whole store.
package api
