//
//
// Tencent is pleased to support the open source community by making tRPC available.
//
// Copyright (C) 2023 THL A29 Limited, a Tencent company.
// All rights reserved.
//
// If you have downloaded a copy of the tRPC source code from Tencent,
// please note that tRPC source code is licensed under the  Apache 2.0 License,
// A copy of the Apache 2.0 License is included in this file.
//
//

// Package metrics provides tkv runtime monitoring data, such as connection
// lifecycle counts and data path volumes, which is a good tool for spotting
// unhealthy nodes.
package metrics

import (
	"time"

	"go.uber.org/atomic"
	"trpc.group/trpc-go/tkv/log"
)

// All metrics definitions.
const (
	// The following constants are connection lifecycle metrics.

	ConnsOpened = iota
	ConnsClosed
	DialFails
	TLSHandshakeFails
	AuthFails

	// The following constants are data path metrics.

	Writes
	WriteBytes
	Reads
	ReadBytes
	Flushes
	FlushBytes
	BufferResizes

	// Keep it last.

	Max
)

var (
	metrics [Max]atomic.Uint64
)

// Add metrics counter.
func Add(name int, delta uint64) {
	if name >= Max {
		return
	}
	metrics[name].Add(delta)
}

// Get one metric counter.
func Get(name int) uint64 {
	if name >= Max {
		return 0
	}
	return metrics[name].Load()
}

// GetAll get all metrics.
func GetAll() [Max]uint64 {
	var m [Max]uint64
	for i := range metrics {
		m[i] = metrics[i].Load()
	}
	return m
}

// ShowMetricsOfPeriod shows metric info of duration d from now on.
// It will block d duration, and then prints metrics info.
func ShowMetricsOfPeriod(d time.Duration) {
	old := GetAll()
	<-time.After(d)
	new := GetAll()
	var m [Max]uint64
	for i := range metrics {
		m[i] = new[i] - old[i]
	}
	showAll(m)
}

// ShowMetrics shows metric info in console.
func ShowMetrics() {
	m := GetAll()
	showAll(m)
}

func showAll(m [Max]uint64) {
	log.Debug("######### tkv metrics (", time.Now().Format("2006-01-02 15:04:05"), ") ###########")
	showConnMetrics(m)
	showDataMetrics(m)
}

func showConnMetrics(m [Max]uint64) {
	log.Debugf("%-59s: %d", "# Conn - number of connections opened", m[ConnsOpened])
	log.Debugf("%-59s: %d", "# Conn - number of connections closed", m[ConnsClosed])
	log.Debugf("%-59s: %d", "# Conn - number of failed dials", m[DialFails])
	log.Debugf("%-59s: %d", "# Conn - number of failed TLS handshakes", m[TLSHandshakeFails])
	log.Debugf("%-59s: %d", "# Conn - number of failed authentications", m[AuthFails])
}

func showDataMetrics(m [Max]uint64) {
	log.Debugf("%-59s: %d", "# Data - number of writes", m[Writes])
	if m[Writes] > 0 {
		log.Debugf("%-59s: %dB", "# Data - write efficiency", m[WriteBytes]/m[Writes])
	}
	log.Debugf("%-59s: %d", "# Data - number of reads", m[Reads])
	if m[Reads] > 0 {
		log.Debugf("%-59s: %dB", "# Data - read efficiency", m[ReadBytes]/m[Reads])
	}
	log.Debugf("%-59s: %d", "# Data - number of flushes", m[Flushes])
	if m[Flushes] > 0 {
		log.Debugf("%-59s: %dB", "# Data - flush efficiency", m[FlushBytes]/m[Flushes])
	}
	log.Debugf("%-59s: %d", "# Data - number of staging buffer resizes", m[BufferResizes])
}
