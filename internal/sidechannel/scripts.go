package sidechannel

// Provider recovery-flow scripts. Each drives the account-recovery form
// far enough to learn whether the address maps to a real account, without
// ever completing a recovery.

// YahooRecoveryScript probes the Yahoo password-recovery flow.
func YahooRecoveryScript(email string, screenshot bool) Script {
	return Script{
		Steps: []ScriptStep{
			{Action: ActionNavigate, Target: "https://login.yahoo.com/forgot"},
			{Action: ActionWaitFor, Target: "input#username"},
			{Action: ActionType, Target: "input#username", Value: email},
			{Action: ActionClick, Target: "button[name=verifyYid]"},
			{Action: ActionWaitFor, Target: "body"},
		},
		ExistsIndicators: []string{
			"enter verification code",
			"we sent a code",
			"confirm your account",
		},
		MissingIndicators: []string{
			"sorry, we don't recognize",
			"we don't recognize this email",
			"uh-oh",
		},
		Screenshot: screenshot,
	}
}

// GmailRecoveryScript probes the Google account-recovery flow.
func GmailRecoveryScript(email string, screenshot bool) Script {
	return Script{
		Steps: []ScriptStep{
			{Action: ActionNavigate, Target: "https://accounts.google.com/signin/recovery"},
			{Action: ActionWaitFor, Target: "input[type=email]"},
			{Action: ActionType, Target: "input[type=email]", Value: email},
			{Action: ActionClick, Target: "#identifierNext"},
			{Action: ActionWaitFor, Target: "body"},
		},
		ExistsIndicators: []string{
			"verify it",
			"recover your account",
			"enter the last password",
		},
		MissingIndicators: []string{
			"couldn't find your google account",
			"couldn't find an account",
		},
		Screenshot: screenshot,
	}
}
