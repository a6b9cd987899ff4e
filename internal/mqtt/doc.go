// Package mqtt publishes service telemetry to an MQTT broker: a retained
// availability topic and periodic retained state topics (uptime, version,
// model, relay peers, and today's resolutions by outcome).
//
// The publisher uses Eclipse Paho v2's [autopaho] package for
// connection management with automatic reconnection. On every
// (re-)connect it publishes a birth message ("online") to the
// availability topic. A will message moves the topic to "offline" on
// unexpected disconnects.
package mqtt
