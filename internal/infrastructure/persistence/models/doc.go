// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer pure and free
// from ORM concerns.
//
// Structure:
// - document.go: immutable content records
// - ledger.go: ledger entries, print tokens, offline tokens, the audit log
// - render.go: render jobs and their page artifacts
//
// Mappers (ToDomain / *FromDomain) convert between domain entities and
// persistence models; repositories only ever touch the models.
package models
