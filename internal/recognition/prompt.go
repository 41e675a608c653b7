package recognition

// PromptVersion identifies Prompt. Bump it whenever the wording changes so
// catalogs produced by different prompts can be told apart in logs.
const PromptVersion = "coin-v1"

// Prompt is sent unchanged with every pair of coin photographs.
const Prompt = `Analyze these two photographs of the same coin (face and reverse).

CRITICAL: examine EVERY inscription with maximum attention, especially dates. Take your time to read each digit carefully.

Extract the following information as strict JSON:
{
  "country": "Country name in French",
  "currency": "Currency name (e.g. Lire, Franc, Euro)",
  "value": "Face value with unit (e.g. 200 Lire, 5 Francs)",
  "year": "Minting year (YYYY format, or null if truly illegible)",
  "notes": "Optional remarks (condition, special features, notable symbols)"
}

Rules:
- Read ALL visible inscriptions, even if blurry or small
- The year is critical: look along the ENTIRE perimeter of BOTH sides, near the rim
- Distinguish similar digits carefully: 0 vs 8, 1 vs 7, 3 vs 8, 5 vs 6
- Double-check each digit of the year before answering
- If the year is truly illegible after careful examination, use null
- Be precise about the currency (Italian Lira, French Franc, ...)
- In notes, mention only remarkable elements
- Answer ONLY with the JSON object, no additional text`
