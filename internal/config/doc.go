// Package config provides configuration structures and utilities for arrestscan.
// It defines the scrape window, browser behaviour, upload destination and the
// selector hints used to locate form controls on the arrest-report site.
package config
