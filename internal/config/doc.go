// Package config loads the JSON configuration of the swaprelayd daemon: the
// relay settings, the devnet genesis and liquidity, storage, queue, logging,
// metrics and alerting. Paths are resolved relative to the config file.
package config
