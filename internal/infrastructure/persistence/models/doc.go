// Package models holds the GORM persistence models. They are kept apart from
// the domain entities so that column tags and indexes never leak into the
// domain layer. Each model has ToDomain and a ...FromDomain constructor.
package models
