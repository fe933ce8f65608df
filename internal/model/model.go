// Package model holds the JSON request and response bodies of the HTTP API.
package model

import "github.com/jun/teledrive/internal/vfs"

// SendCodeRequest is the body of POST auth/send-code.
type SendCodeRequest struct {
	PhoneNumber string `json:"phoneNumber"`
}

// SendCodeResponse carries the code hash that must accompany the login.
type SendCodeResponse struct {
	Success       bool   `json:"success"`
	PhoneCodeHash string `json:"phoneCodeHash"`
	Step          string `json:"step"`
}

// LoginRequest is the body of POST auth/login.
type LoginRequest struct {
	PhoneNumber   string `json:"phoneNumber"`
	PhoneCode     string `json:"phoneCode"`
	Password      string `json:"password,omitempty"`
	PhoneCodeHash string `json:"phoneCodeHash"`
}

// DeleteRequest is the body of POST files/delete.
type DeleteRequest struct {
	ID int `json:"id"`
}

// EditRequest is the body of POST files/edit.
type EditRequest struct {
	ID         int    `json:"id"`
	NewCaption string `json:"newCaption"`
}

// CreateFolderRequest is the body of POST folders/create.
type CreateFolderRequest struct {
	FolderName  string `json:"folderName"`
	CurrentPath string `json:"currentPath"`
}

// Response is the common envelope. Error is set when Success is false.
type Response struct {
	Success          bool   `json:"success"`
	Error            string `json:"error,omitempty"`
	Message          string `json:"message,omitempty"`
	PasswordRequired bool   `json:"passwordRequired,omitempty"`
	// Step is the login step the client is at after a login attempt.
	Step string `json:"step,omitempty"`
}

// ListResponse is the body of GET files.
type ListResponse struct {
	Success      bool         `json:"success"`
	Files        []vfs.Record `json:"files"`
	NextOffsetID int          `json:"nextOffsetId"`
	HasMore      bool         `json:"hasMore"`
}

// UploadResponse is the body of POST files/upload.
type UploadResponse struct {
	Success bool       `json:"success"`
	Result  vfs.Record `json:"result"`
}

// StorageResponse is the body of GET storage. The total covers at most
// Scanned recent messages, hence Approximate.
type StorageResponse struct {
	Success     bool  `json:"success"`
	TotalSize   int64 `json:"totalSize"`
	Scanned     int   `json:"scanned"`
	Approximate bool  `json:"approximate"`
}
