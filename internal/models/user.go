// Package models provides data models for the DeFi health scanner.
package models

import "time"

// User is a wallet that has connected to the dashboard
type User struct {
	ID            string      `json:"id" db:"id"`
	WalletAddress string      `json:"walletAddress" db:"wallet_address"`
	AccessTimes   []time.Time `json:"accessTimes" db:"access_times"`
	CreatedAt     time.Time   `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time   `json:"updatedAt" db:"updated_at"`
}

// Session binds a browser session to a connected wallet
type Session struct {
	ID            string    `json:"id"`
	WalletAddress string    `json:"walletAddress"`
	CreatedAt     time.Time `json:"createdAt"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

// AccessGrant records a verified report payment
type AccessGrant struct {
	WalletAddress string    `json:"walletAddress"`
	TxHash        string    `json:"txHash"`
	GrantedAt     time.Time `json:"grantedAt"`
	ExpiresAt     time.Time `json:"expiresAt"`
}
