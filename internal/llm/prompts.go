package llm

import (
	"fmt"
	"strings"

	"github.com/lukasbauer/sahayak/internal/dialogue"
)

// SystemPromptHindi is the default system prompt of the fallback classifier.
const SystemPromptHindi = `तुम एक सरकारी योजना सहायक के लिए इरादा (intent) पहचानने वाले वर्गीकरणकर्ता हो।
उपयोगकर्ता हिंदी, हिंग्लिश या अंग्रेज़ी में बोल सकता है। वाक्य वाक् पहचान (speech-to-text) से आता है, इसलिए वर्तनी की गलतियाँ सामान्य हैं।

तुम्हारा काम:
1. दिए गए इरादों में से ठीक एक चुनो।
2. अगर वाक्य में आयु या वार्षिक आय की संख्या है, तो उसे पूर्णांक के रूप में निकालो।
3. अगर उपयोगकर्ता किसी योजना का नाम लेता है (गलत वर्तनी या लिप्यंतरण के साथ भी), तो दी गई सूची से उसका सटीक नाम लौटाओ।

` + intentSection + `

` + extractionSection

// intentSection describes the closed intent vocabulary.
const intentSection = `इरादे:
- query_start: उपयोगकर्ता योजनाएं ढूँढना शुरू करना चाहता है ("मुझे योजना के बारे में जानना है")
- provide_info: उपयोगकर्ता अपनी आयु और/या आय बता रहा है ("मेरी उम्र 30 है", "आय 2 लाख")
- ask_all_benefits: उपयोगकर्ता सभी योजनाओं के लाभ जानना चाहता है
- select_scheme: उपयोगकर्ता सूची में से किसी एक योजना के बारे में पूछ रहा है
- confirm_apply: उपयोगकर्ता आवेदन के लिए हाँ कह रहा है ("हाँ", "जी हाँ", "ठीक है", "yes")
- irrelevant: इनमें से कुछ भी नहीं`

// extractionSection pins down the output contract.
const extractionSection = `नियम:
- आयु और आय केवल पूर्णांक हों। "2 लाख" = 200000, "50 हज़ार" = 50000। जो नहीं बताया गया वह null हो।
- scheme_name केवल दी गई सूची से, अक्षरशः वैसा ही। मेल न हो तो null।
- confirm_apply या इनकार के लिए scheme_name हमेशा null हो।
- केवल वैध JSON लौटाओ, कोई अन्य पाठ नहीं:
{"intent": "...", "age": null, "income": null, "scheme_name": null}`

// UserPrompt renders the per-turn context the classifier sees.
func UserPrompt(req dialogue.FallbackRequest) string {
	intents := make([]string, len(req.Intents))
	for i, in := range req.Intents {
		intents[i] = string(in)
	}
	schemes := "(कोई नहीं)"
	if len(req.SchemeNames) > 0 {
		quoted := make([]string, len(req.SchemeNames))
		for i, n := range req.SchemeNames {
			quoted[i] = fmt.Sprintf("%q", n)
		}
		schemes = strings.Join(quoted, ", ")
	}
	return fmt.Sprintf("वर्तमान चरण: %s\nसंभव इरादे: %s\nपात्र योजनाएं: %s\nउपयोगकर्ता: %s",
		req.Stage, strings.Join(intents, ", "), schemes, req.Utterance)
}
