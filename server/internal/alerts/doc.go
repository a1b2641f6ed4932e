// Package alerts implements the rule evaluation engine and webhook delivery
// for formcheck-server. Rules are evaluated against every analyzed record a
// session delivers; webhooks are delivered to Teams, Slack or generic HTTP
// targets when an alert fires and again when it resolves.
package alerts
