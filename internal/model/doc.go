// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// Package model holds the format-agnostic domain types shared by every layer
// of gridseed: nodes and their runs, groups and their hooks, generated records
// and the typed errors used to classify failures.
//
// The types here are produced by the parser and are immutable afterwards. No
// package in model performs I/O.
package model
