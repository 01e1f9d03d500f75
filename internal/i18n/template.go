package i18n

import "os"

// defaultMessages is the starter en_us catalog written by GenerateDefault.
// Color codes use the & notation hosts commonly translate for chat output.
const defaultMessages = `tollgate:
  economy:
    unavailable: "&cThe economy service is unavailable right now."
  teleport:
    charged: "&aYou paid {currency}{amount} to teleport."
    insufficient: "&cYou need {currency}{amount} to teleport."
    failed: "&cTeleport payment failed: {error}"
  open:
    charged: "&aYou paid {currency}{amount} to open this."
    insufficient: "&cYou need {currency}{amount} to open this."
    failed: "&cPayment failed: {error}"
  autoloot:
    charged: "&aYou paid {currency}{amount} for auto-loot."
    insufficient: "&cYou need {currency}{amount} for auto-loot."
    failed: "&cAuto-loot payment failed: {error}"
  block_break:
    charged: "&aYou paid {currency}{amount} to break this."
    insufficient: "&cYou need {currency}{amount} to break this."
    failed: "&cPayment failed: {error}"
`

// GenerateDefault writes the starter en_us message catalog to path.
func GenerateDefault(path string) error {
	return os.WriteFile(path, []byte(defaultMessages), 0o644)
}
