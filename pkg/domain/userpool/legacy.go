package userpool

import "context"

// ResolveUsername finds the username actually carrying an identity for
// accountID + factor ("app" or "hardware"): the split form first, falling
// back to the legacy collapsed "<id>-wallet" form. Per spec.md §9's open
// question, both shapes are valid on read; CreateOrUpdateUser always writes
// the split form, and a rotation signs out the split form plus any legacy
// identity resolved here.
func ResolveUsername(ctx context.Context, g Gateway, accountID, factor string) (string, error) {
	app, hardware, _ := Usernames(accountID)

	split := app
	if factor == "hardware" {
		split = hardware
	}

	exists, err := g.IsExistingUser(ctx, split)
	if err != nil {
		return "", err
	}
	if exists {
		return split, nil
	}

	legacy := LegacyUsername(accountID)
	exists, err = g.IsExistingUser(ctx, legacy)
	if err != nil {
		return "", err
	}
	if exists {
		return legacy, nil
	}

	return split, nil
}
